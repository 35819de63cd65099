package msg

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestIndentWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &IndentWriter{Indent: "  ", W: &buf}

	n, err := w.Write([]byte("one\ntwo\n"))
	assert.NoError(t, err)
	assert.Equal(t, 8, n)
	_, _ = w.Write([]byte("three"))

	assert.Equal(t, "  one\n  two\n  three", buf.String())
}

func TestVerboseIsGated(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetVerbose(false)
	Verbose("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	defer SetVerbose(false)
	Verbose("shown %d", 2)
	assert.Equal(t, "verbose: shown 2\n", buf.String())
}

func TestInfoAndWarnFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("wrote %s", "Makefile")
	Warn("careful")

	assert.Equal(t, "info: wrote Makefile\nwarn: careful\n", buf.String())
}

func TestProgressBarConcurrentIncrement(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(50, 2, "Writing", &buf)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pb.Increment()
		}()
	}
	wg.Wait()
	pb.Finish()

	assert.EqualValues(t, 50, pb.Current)
	assert.True(t, strings.HasSuffix(buf.String(), "50/50  \n"), buf.String())
}
