package tor

import (
	"errors"
	"testing"
	"time"
)

func TestEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("default timeout", func(t *testing.T) {
		t.Parallel()

		if e := NewEmbeddedTor(); e.startupTimeout != DefaultStartupTimeout {
			t.Errorf("startupTimeout = %v", e.startupTimeout)
		}
	})

	t.Run("WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		if e := NewEmbeddedTor(WithStartupTimeout(time.Minute)); e.startupTimeout != time.Minute {
			t.Errorf("startupTimeout = %v", e.startupTimeout)
		}
	})

	t.Run("stopped instance", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.IsRunning() || e.SocksAddr() != "" {
			t.Error("new instance must not be running")
		}
		if err := e.Stop(); err != nil {
			t.Errorf("Stop on stopped instance: %v", err)
		}
		if _, err := e.NewClient(time.Second); !errors.Is(err, ErrNotRunning) {
			t.Errorf("NewClient error = %v, want ErrNotRunning", err)
		}
	})
}
