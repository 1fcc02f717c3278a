package logsink

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCollectsAndForwardsInOrder(t *testing.T) {
	sink := New()

	for i := 0; i < 5; i++ {
		sink.Log("line %d", i)
	}
	sink.Close()

	var streamed []string
	for line := range sink.Stream() {
		streamed = append(streamed, line)
	}

	want := []string{"line 0", "line 1", "line 2", "line 3", "line 4"}
	assert.Equal(t, want, streamed)
	assert.Equal(t, want, sink.Lines())
}

func TestLogWithoutArgsKeepsFormatVerbatim(t *testing.T) {
	sink := New()
	defer sink.Close()

	sink.Log("progress: 100%")

	require.Equal(t, []string{"progress: 100%"}, sink.Lines())
}

func TestLinesReturnsACopy(t *testing.T) {
	sink := New()
	defer sink.Close()

	sink.Log("first")
	lines := sink.Lines()
	lines[0] = "mutated"

	assert.Equal(t, []string{"first"}, sink.Lines())
}

func TestCloseIsIdempotent(t *testing.T) {
	sink := New()
	sink.Close()
	sink.Close()

	_, open := <-sink.Stream()
	assert.False(t, open)
}

func TestLogAfterCloseStillCollects(t *testing.T) {
	sink := New()
	sink.Close()

	sink.Log("late line %d", 1)

	assert.Equal(t, []string{"late line 1"}, sink.Lines())
}

func TestStreamDeliversWhileProducing(t *testing.T) {
	sink := New()

	done := make(chan []string)
	go func() {
		var got []string
		for line := range sink.Stream() {
			got = append(got, line)
		}
		done <- got
	}()

	for i := 0; i < 100; i++ {
		sink.Log(fmt.Sprintf("line %d", i))
	}
	sink.Close()

	got := <-done
	require.Len(t, got, 100)
	assert.Equal(t, "line 0", got[0])
	assert.Equal(t, "line 99", got[99])
}
