//nolint:funlen // ok for tests
package permission

import (
	"context"
	"testing"
)

func TestOpa_Allowed(t *testing.T) {
	ope, err := NewOpaEvaluator()
	if err != nil {
		t.Fatalf("NewOpaEvaluator: %v", err)
	}
	players := []string{"alice", "bob"}
	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{
			name: "convener snapshot",
			req:  Request{Kind: "snapshot", Sender: "alice", Subject: "alice", Convener: "alice"},
			want: true,
		},
		{
			name: "snapshot from other player",
			req:  Request{Kind: "snapshot", Sender: "bob", Subject: "alice", Convener: "alice"},
			want: false,
		},
		{
			name: "forged convener in snapshot",
			req:  Request{Kind: "snapshot", Sender: "bob", Subject: "bob", Convener: "alice"},
			want: false,
		},
		{
			name: "snapshot with unknown convener",
			req:  Request{Kind: "snapshot", Sender: "alice", Subject: "alice"},
			want: true,
		},
		{
			name: "start from convener",
			req:  Request{Kind: "start", Sender: "alice", Convener: "alice"},
			want: true,
		},
		{
			name: "start from player",
			req:  Request{Kind: "start", Sender: "bob", Convener: "alice"},
			want: false,
		},
		{
			name: "start with unknown convener",
			req:  Request{Kind: "start", Sender: "bob"},
			want: false,
		},
		{
			name: "own intent",
			req: Request{
				Kind: "intent", Sender: "bob", Subject: "bob", Convener: "alice", Players: players,
			},
			want: true,
		},
		{
			name: "intent for someone else",
			req: Request{
				Kind: "intent", Sender: "bob", Subject: "alice", Convener: "alice", Players: players,
			},
			want: false,
		},
		{
			name: "intent from spectator",
			req: Request{
				Kind: "intent", Sender: "carol", Subject: "carol", Convener: "alice", Players: players,
			},
			want: false,
		},
		{
			name: "intent before roster is known",
			req:  Request{Kind: "intent", Sender: "carol", Subject: "carol", Convener: "alice"},
			want: true,
		},
		{
			name: "own ready",
			req:  Request{Kind: "ready", Sender: "bob", Subject: "bob", Convener: "alice"},
			want: true,
		},
		{
			name: "ready for someone else",
			req:  Request{Kind: "ready", Sender: "bob", Subject: "alice", Convener: "alice"},
			want: false,
		},
		{
			name: "unknown kind",
			req:  Request{Kind: "chat", Sender: "alice", Subject: "alice", Convener: "alice"},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ope.Allowed(context.Background(), tt.req); got != tt.want {
				t.Errorf("Allowed() = %v, want %v", got, tt.want)
			}
		})
	}
}
