package models

// Page is the raw document produced by one render.
type Page struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
	// TimedOut is set when the navigation budget elapsed before the network went idle
	// and HTML holds whatever had loaded by then.
	TimedOut bool `json:"timed_out"`
	RenderMS int  `json:"render_ms"`
}
