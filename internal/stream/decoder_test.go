package stream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderNext(t *testing.T) {
	t.Parallel()

	t.Run("decodes frames in order", func(t *testing.T) {
		raw := "event: answer\ndata: {\"text\":\"Hel\"}\n\n" +
			"event: answer\ndata: {\"text\":\"lo\"}\n\n"
		dec := NewDecoder(strings.NewReader(raw))

		first, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "answer", first.Name)
		assert.Equal(t, "Hel", first.Data["text"])

		second, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "lo", second.Data["text"])

		_, err = dec.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("skips malformed json frames", func(t *testing.T) {
		raw := "event: answer\ndata: {\"text\":\"ok\"}\n\n" +
			"event: answer\ndata: {not json\n\n" +
			"event: answer\ndata: {\"text\":\"too\"}\n\n"
		dec := NewDecoder(strings.NewReader(raw))

		first, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "ok", first.Data["text"])

		second, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "too", second.Data["text"])

		_, err = dec.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("skips frames without event name", func(t *testing.T) {
		raw := "data: {\"text\":\"orphan\"}\n\n" +
			"event: answer\ndata: {\"text\":\"named\"}\n\n"
		dec := NewDecoder(strings.NewReader(raw))

		ev, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "answer", ev.Name)
	})

	t.Run("concatenates split data lines", func(t *testing.T) {
		raw := "event: answer\ndata: {\"text\":\ndata: \"split\"}\n\n"
		dec := NewDecoder(strings.NewReader(raw))

		ev, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "split", ev.Data["text"])
	})

	t.Run("stops after terminal event", func(t *testing.T) {
		raw := "event: done\ndata: {}\n\n" +
			"event: answer\ndata: {\"text\":\"late\"}\n\n"
		dec := NewDecoder(strings.NewReader(raw))

		ev, err := dec.Next()
		require.NoError(t, err)
		assert.True(t, ev.Terminal())

		_, err = dec.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("handles crlf line endings", func(t *testing.T) {
		raw := "event: answer\r\ndata: {\"text\":\"crlf\"}\r\n\r\n"
		dec := NewDecoder(strings.NewReader(raw))

		ev, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "crlf", ev.Data["text"])
	})

	t.Run("final frame without trailing blank line", func(t *testing.T) {
		raw := "event: answer\ndata: {\"text\":\"tail\"}"
		dec := NewDecoder(strings.NewReader(raw))

		ev, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, "tail", ev.Data["text"])

		_, err = dec.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("empty source", func(t *testing.T) {
		dec := NewDecoder(strings.NewReader(""))
		_, err := dec.Next()
		assert.ErrorIs(t, err, io.EOF)
	})
}
