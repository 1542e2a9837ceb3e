package verify

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reencode/internal/services"
)

func useHelperProcess(t *testing.T) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestCheckCleanFile(t *testing.T) {
	useHelperProcess(t)
	report, err := Check(context.Background(), "ffmpeg", "clean.mkv", nil)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Empty(t, report.Lines)
}

func TestCheckCountsErrorLinesOnBothStreams(t *testing.T) {
	useHelperProcess(t)
	var seen []string
	report, err := Check(context.Background(), "ffmpeg", "damaged.mkv", func(line string, _ int) {
		seen = append(seen, line)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Errors)
	assert.Len(t, report.Lines, 4)
	assert.Len(t, seen, 4)
	assert.Equal(t, 1, report.ExitCode)
	assert.False(t, report.OK())
}

func TestCheckOverlongLineDoesNotHang(t *testing.T) {
	useHelperProcess(t)
	done := make(chan error, 1)
	go func() {
		_, err := Check(context.Background(), "ffmpeg", "overlong.mkv", nil)
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, services.ErrExternalTool)
		assert.ErrorIs(t, err, bufio.ErrTooLong)
	case <-time.After(30 * time.Second):
		t.Fatal("check blocked on an undrained pipe")
	}
}

func TestCheckSpawnFailure(t *testing.T) {
	_, err := Check(context.Background(), filepath.Join(t.TempDir(), "missing-ffmpeg"), "x.mkv", nil)
	assert.ErrorIs(t, err, services.ErrExternalTool)
}

func TestTargets(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.mkv", "b.txt", "c.MP4", filepath.Join("sub", "d.avi")} {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	all, err := Targets(root, "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.mkv"),
		filepath.Join(root, "c.MP4"),
		filepath.Join(root, "sub", "d.avi"),
	}, all)

	flat, err := Targets(root, "*.mkv", false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.mkv")}, flat)

	_, err = Targets(root, "[", false)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	input := ""
	for i, arg := range args {
		if arg == "-i" {
			input = args[i+1]
		}
	}
	if strings.Contains(input, "overlong") {
		fmt.Fprintln(os.Stderr, strings.Repeat("x", 4*1024*1024))
		fmt.Fprintln(os.Stderr, "[h264 @ 0x1] error after the long line")
		os.Exit(0)
	}
	if strings.Contains(input, "damaged") {
		fmt.Fprintln(os.Stderr, "[h264 @ 0x1] error while decoding MB 10 4")
		fmt.Fprintln(os.Stderr, "[h264 @ 0x1] concealing 200 DC errors")
		fmt.Fprintln(os.Stderr, "[h264 @ 0x1] left block unavailable")
		fmt.Fprintln(os.Stdout, "Error: decode aborted")
		os.Exit(1)
	}
	os.Exit(0)
}
