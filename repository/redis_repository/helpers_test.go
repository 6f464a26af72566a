package redis_repository

import (
	"net"
	"time"

	"github.com/mohammad-safakhou/groundchat/config"
)

func splitAddr(addr string) (string, string, error) {
	return net.SplitHostPort(addr)
}

func configFor(host, port string) config.RedisConfig {
	return config.RedisConfig{Host: host, Port: port, Timeout: time.Second}
}
