package deps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperr "github.com/turtacn/apswitch/pkg/errors"
)

func fakeLookPath(installed ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, i := range installed {
			if i == name {
				return "/usr/sbin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestChecker_CheckAll(t *testing.T) {
	c := NewChecker(nil)
	c.lookPath = fakeLookPath("hostapd", "dhcpcd")

	results := c.CheckAll()
	require.Len(t, results, 3)
	assert.True(t, results[0].Found)
	assert.Equal(t, "/usr/sbin/hostapd", results[0].Path)
	assert.False(t, results[1].Found)
	assert.Equal(t, "dnsmasq", results[1].Name)
	assert.True(t, results[2].Found)
	assert.Equal(t, "dhcpcd5", results[2].Package)

	missing := Missing(results)
	require.Len(t, missing, 1)
	assert.Equal(t, "dnsmasq", missing[0].Name)
}

func TestChecker_Require(t *testing.T) {
	c := NewChecker(nil)
	c.lookPath = fakeLookPath("dhcpcd")

	err := c.Require()
	require.Error(t, err)
	assert.Equal(t, apperr.ErrCodeMissingDependency, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "hostapd, dnsmasq")

	c.lookPath = fakeLookPath("hostapd", "dnsmasq", "dhcpcd")
	assert.NoError(t, c.Require())
}

type recordingRunner struct {
	calls []string
	fail  string
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, call)
	if r.fail != "" && strings.HasPrefix(call, r.fail) {
		return nil, errors.New("exit status 100")
	}
	return nil, nil
}

func TestInstaller_Install(t *testing.T) {
	r := &recordingRunner{}
	i := NewInstaller(r)

	err := i.Install(context.Background(), []Dependency{Defaults[1], Defaults[2]})
	require.NoError(t, err)
	assert.Equal(t, []string{"apt-get update", "apt-get install -y dnsmasq dhcpcd5"}, r.calls)
}

func TestInstaller_NothingMissing(t *testing.T) {
	r := &recordingRunner{}
	require.NoError(t, NewInstaller(r).Install(context.Background(), nil))
	assert.Empty(t, r.calls)
}

func TestInstaller_Failure(t *testing.T) {
	r := &recordingRunner{fail: "apt-get install"}
	err := NewInstaller(r).Install(context.Background(), Defaults)
	require.Error(t, err)
	assert.Equal(t, apperr.ErrCodeInstallFailed, apperr.CodeOf(err))
}
