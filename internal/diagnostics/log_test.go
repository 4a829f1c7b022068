package diagnostics

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidqc/internal/shared/testutil"
)

func TestLog_AppendOrderAndSeverity(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	log := NewLog(logger)

	assert.False(t, log.HasError())

	log.Warning("Could not fetch CDS counties", nil)
	assert.False(t, log.HasError(), "warnings do not set the error flag")

	cause := errors.New("status=500")
	log.Error("Could not load current", cause)
	log.Warning("second warning", nil)

	assert.True(t, log.HasError())
	assert.Equal(t, 3, log.Len())
	assert.Equal(t, 1, log.Count(SeverityError))
	assert.Equal(t, 2, log.Count(SeverityWarning))

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "Could not fetch CDS counties", entries[0].Message)
	assert.Equal(t, SeverityError, entries[1].Severity)
	assert.Equal(t, "status=500", entries[1].Cause)
	assert.Same(t, cause, entries[1].Err())
	assert.Equal(t, "second warning", entries[2].Message)
}

func TestLog_EntriesIsACopy(t *testing.T) {
	log := NewLog(nil)
	log.Error("one", nil)

	entries := log.Entries()
	entries[0].Message = "mutated"

	assert.Equal(t, "one", log.Entries()[0].Message)
}

func TestLog_Print(t *testing.T) {
	log := NewLog(nil)
	log.Error("Invalid negative value (12x4) for NY", nil)
	log.Warning("Could not load NYT counties", errors.New("status=404"))

	var b strings.Builder
	require.NoError(t, log.Print(&b))

	assert.Equal(t,
		"ERROR: Invalid negative value (12x4) for NY\n"+
			"WARNING: Could not load NYT counties: status=404\n",
		b.String())
}

func TestLog_MirrorsToSlog(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	log := NewLog(logger)

	log.Warning("Could not fetch NYT counties", nil)

	testutil.AssertLogContains(t, handler, slog.LevelDebug, "diagnostic recorded")
	testutil.AssertLogAttr(t, handler, "severity", "warning")
}

func TestLog_Observe(t *testing.T) {
	log := NewLog(nil)
	var seen []Severity
	log.Observe(func(e Entry) { seen = append(seen, e.Severity) })

	log.Error("a", nil)
	log.Warning("b", nil)

	assert.Equal(t, []Severity{SeverityError, SeverityWarning}, seen)
}

func TestLog_ConcurrentAppends(t *testing.T) {
	log := NewLog(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				log.Error("e", nil)
			} else {
				log.Warning("w", nil)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, log.Len())
	assert.Equal(t, 25, log.Count(SeverityError))
}
