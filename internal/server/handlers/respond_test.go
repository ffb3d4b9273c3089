package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/syncerr"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"record not found", store.ErrRecordNotFound, http.StatusNotFound},
		{"wrapped session not found", fmt.Errorf("failed to load: %w", store.ErrSessionNotFound), http.StatusNotFound},
		{"unknown node", syncerr.Authentication("get node", syncerr.ErrUnknownNode), http.StatusNotFound},
		{"session running", engine.ErrSessionRunning, http.StatusConflict},
		{"no peers", engine.ErrNoPeers, http.StatusConflict},
		{"version conflict", syncerr.ErrVersionConflict, http.StatusConflict},
		{"key mismatch", syncerr.ErrKeyMismatch, http.StatusForbidden},
		{"crypto", syncerr.Crypto("open", errors.New("bad")), http.StatusUnprocessableEntity},
		{"network", syncerr.Network("dial", errors.New("refused")), http.StatusBadGateway},
		{"storage", syncerr.Storage("put", errors.New("disk")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
