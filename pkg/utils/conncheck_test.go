package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromDBURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgresql://user:pw@db:6543/rse", "db:6543"},
		{"postgresql://user:pw@db/rse", "db:5432"},
		{"postgres://db.local/rse?sslmode=disable", "db.local:5432"},
		{"mysql://db/rse", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromDBURL(tt.url))
		})
	}
}

func TestExtractFromNatsURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"nats://localhost:4223", "localhost:4223"},
		{"nats://localhost", "localhost:4222"},
		{"nats://token@broker:4222", "broker:4222"},
		{"tls://broker.example.com", "broker.example.com:4222"},
		{"http://broker", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromNatsURL(tt.url))
		})
	}
}

func TestWaitForTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	assert.NoError(t, WaitForTCP(context.Background(), addr, time.Second))

	ln.Close()
	assert.Error(t, WaitForTCP(context.Background(), addr, 300*time.Millisecond))
}
