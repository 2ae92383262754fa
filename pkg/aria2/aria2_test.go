package aria2

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	gperrors "github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/metalink"
	"github.com/glorpus-work/gopill/pkg/model"
	"github.com/glorpus-work/gopill/pkg/process"
	"github.com/glorpus-work/gopill/pkg/process/mocks"
	"github.com/glorpus-work/gopill/test/testutil"
)

func packageQueue() *model.DownloadQueue {
	q := model.NewDownloadQueue()
	q.AddPackage(model.PackageArtifact{
		Filename: "pkgB-2.0-1-any.pkg.tar.zst",
		URLs:     []string{"https://unofficial.example/pkgB-2.0-1-any.pkg.tar.zst"},
	})
	return q
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModePackages, ModeFor(false, false))
	assert.Equal(t, ModePackages, ModeFor(false, true))
	assert.Equal(t, ModeRefresh, ModeFor(true, false))
	assert.Equal(t, ModeForceRefresh, ModeFor(true, true))
}

func TestModeFlags(t *testing.T) {
	assert.Empty(t, ModePackages.Flags())
	assert.Contains(t, ModeRefresh.Flags(), "--split=1")
	assert.Contains(t, ModeRefresh.Flags(), "--conditional-get=true")
	assert.Contains(t, ModeRefresh.Flags(), "--continue=false")
	assert.Contains(t, ModeRefresh.Flags(), "--allow-overwrite=true")
	assert.Contains(t, ModeForceRefresh.Flags(), "--conditional-get=false")
	assert.Contains(t, ModeForceRefresh.Flags(), "--remove-control-file=true")
	assert.Equal(t, "force-refresh", ModeForceRefresh.String())
}

func TestNonFatal(t *testing.T) {
	for _, status := range []int{0, 2, 3, 4, 5} {
		assert.True(t, NonFatal(status), "status %d", status)
	}
	for _, status := range []int{1, 6, 7, 9, 13, 24, -1} {
		assert.False(t, NonFatal(status), "status %d", status)
	}
}

func TestCommand(t *testing.T) {
	e := New("/usr/bin/aria2c", []string{"--max-concurrent-downloads=5"}, nil)

	cmd, ok, err := e.Command(packageQueue(), ModeRefresh, "/var/lib/pacman/sync")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/aria2c", cmd.Path)
	assert.Equal(t, "/var/lib/pacman/sync", cmd.Dir)
	assert.Equal(t, append([]string{"--metalink-file=-", "--max-concurrent-downloads=5"}, ModeRefresh.Flags()...), cmd.Args)

	doc, err := metalink.Parse(cmd.Stdin)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkgB-2.0-1-any.pkg.tar.zst"}, doc.Filenames())
}

func TestCommand_NothingRemote(t *testing.T) {
	q := model.NewDownloadQueue()
	q.AddPackage(model.PackageArtifact{Filename: "x", URLs: []string{"file:///x"}})

	_, ok, err := New("/usr/bin/aria2c", nil, nil).Command(q, ModePackages, ".")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDispatch_EmptyQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)

	h, err := New("/usr/bin/aria2c", nil, runner).Dispatch(context.Background(), model.NewDownloadQueue(), ModePackages, ".")
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.NoError(t, h.Wait())
}

func TestDispatch_Classification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "success", status: 0},
		{name: "resource not found is non-fatal", status: 3},
		{name: "speed limit abort is non-fatal", status: 5},
		{name: "network problem is fatal", status: 6, wantErr: true},
		{name: "unfinished downloads are fatal", status: 7, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runner := mocks.NewMockRunner(ctrl)
			proc := mocks.NewMockProcess(ctrl)

			runner.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, cmd process.Command) (process.Process, error) {
					assert.Equal(t, "aria2c", cmd.Label)
					return proc, nil
				})
			proc.EXPECT().Wait().Return(tt.status, nil)

			h, err := New("/usr/bin/aria2c", nil, runner).Dispatch(context.Background(), packageQueue(), ModePackages, ".")
			require.NoError(t, err)

			err = h.Wait()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, gperrors.ErrDownloadFatal)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tt.status, exitErr.Status)
			assert.Equal(t, "aria2c", exitErr.Label)
		})
	}
}

func TestDispatch_StartFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Start(gomock.Any(), gomock.Any()).Return(nil, errors.New("exec: not found"))

	_, err := New("/missing/aria2c", nil, runner).Dispatch(context.Background(), packageQueue(), ModePackages, ".")
	assert.ErrorIs(t, err, gperrors.ErrTransport)
}

func TestDispatch_FakeBinary(t *testing.T) {
	bin := testutil.NewFakeBinary(t, "aria2c", 0)
	dir := t.TempDir()
	runner := &process.ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	h, err := New(bin.Path, nil, runner).WithLabel("aria2c (mirror fallback)").
		Dispatch(context.Background(), packageQueue(), ModeForceRefresh, dir)
	require.NoError(t, err)
	assert.Equal(t, "aria2c (mirror fallback)", h.Label())
	require.NoError(t, h.Wait())

	invocations := bin.Invocations(t)
	require.Len(t, invocations, 1)
	assert.Contains(t, invocations[0].Args, "--conditional-get=false")
	assert.Contains(t, invocations[0].Stdin, "https://unofficial.example/pkgB-2.0-1-any.pkg.tar.zst")
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "segmented download failed: aria2c exited with 7", (&ExitError{Label: "aria2c", Status: 7}).Error())
}
