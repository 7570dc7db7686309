package errors

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSiteError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *SiteError
		want string
	}{
		{
			name: "with path and cause",
			err:  NewIOError("src/a.md", "read failed", fmt.Errorf("permission denied")),
			want: "[io] src/a.md: read failed: permission denied",
		},
		{
			name: "without path",
			err:  NewConfigError("source_dir must not be empty", nil),
			want: "[config] source_dir must not be empty",
		},
		{
			name: "protect failure",
			err:  NewProtectError("src/b.md", "tool exited 1", nil),
			want: "[protect] src/b.md: tool exited 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSiteError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := NewRenderError("a.md", "convert failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestSiteError_Is_MatchesByType(t *testing.T) {
	err := NewProtectError("a.md", "boom", nil)

	assert.ErrorIs(t, err, &SiteError{Type: ErrorTypeProtect})
	assert.NotErrorIs(t, err, &SiteError{Type: ErrorTypeIO})
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(NewProtectError("a.md", "boom", nil)))
	assert.False(t, IsRecoverable(NewIOError("a.md", "boom", nil)))
	assert.False(t, IsRecoverable(fmt.Errorf("plain error")))

	// Recoverability survives wrapping.
	wrapped := fmt.Errorf("context: %w", NewProtectError("a.md", "boom", nil))
	assert.True(t, IsRecoverable(wrapped))
}

func TestErrorCollector(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())
	assert.Equal(t, 0, ec.Count())

	ec.Add("src/a.md", "protect", "exit status 1")
	ec.Add("src/b.md", "protect", "missing output")
	ec.Add("src/a.md", "render", "bad fence")

	assert.True(t, ec.HasErrors())
	assert.Equal(t, 3, ec.Count())
	assert.Len(t, ec.ByPath("src/a.md"), 2)
	assert.Len(t, ec.ByPath("src/c.md"), 0)

	errs := ec.Errors()
	assert.Equal(t, "src/a.md: protect: exit status 1", errs[0].Error())
	assert.False(t, errs[0].Timestamp.IsZero())

	ec.Clear()
	assert.False(t, ec.HasErrors())
}

func TestErrorCollector_Concurrent(t *testing.T) {
	ec := NewErrorCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ec.Add(fmt.Sprintf("src/%d.md", n), "protect", "failed")
			_ = ec.Errors()
			_ = ec.HasErrors()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, ec.Count())
}
