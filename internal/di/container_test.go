package di

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1vanov/quentier-sub007/internal/di/providers"
	"github.com/d1vanov/quentier-sub007/internal/notebookmodel"
	"github.com/d1vanov/quentier-sub007/internal/runloop"
	"github.com/d1vanov/quentier-sub007/internal/tagmodel"
)

func testArgs(t *testing.T, driver string) []string {
	t.Helper()
	return []string{
		"-env-file", filepath.Join(t.TempDir(), "missing.env"),
		"-env", "development",
		"-log-level", "error",
		"-storage-driver", driver,
		"-storage-in-memory", "true",
		"-port", "0",
	}
}

func TestBootstrap_ListsBothModels(t *testing.T) {
	for _, driver := range []string{"badger", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			injector := NewContainer(testArgs(t, driver))
			require.NoError(t, Bootstrap(injector))

			loop := do.MustInvoke[*providers.RunLoopHandle](injector)
			tags := do.MustInvoke[*tagmodel.Model](injector)
			notebooks := do.MustInvoke[*notebookmodel.Model](injector)

			require.Eventually(t, func() bool {
				listed, err := runloop.Query(context.Background(), loop.Loop, func() (bool, error) {
					return tags.AllItemsListed() && notebooks.AllItemsListed(), nil
				})
				return err == nil && listed
			}, 5*time.Second, 10*time.Millisecond)

			require.NoError(t, Shutdown(injector))

			err := loop.Do(context.Background(), func() error { return nil })
			assert.ErrorIs(t, err, runloop.ErrStopped)
		})
	}
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	args := append(testArgs(t, "badger"), "-account-type", "cloud")

	injector := NewContainer(args)
	err := Bootstrap(injector)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "account")
}

type fakeReport struct{ msg string }

func (r *fakeReport) Error() string { return r.msg }

func TestReportError(t *testing.T) {
	assert.NoError(t, reportError[*fakeReport](nil))
	assert.NoError(t, reportError(&fakeReport{}))

	err := reportError(&fakeReport{msg: "storage: close failed"})
	require.Error(t, err)
	assert.EqualError(t, err, "storage: close failed")

	var report *fakeReport
	assert.True(t, errors.As(err, &report))
}
