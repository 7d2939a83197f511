package classifier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-ifw/internal/ifw/domain"
	"github.com/haukened/rr-ifw/internal/ifw/repos/inventory"
)

func exampleInventory() *inventory.Inventory {
	return inventory.New(
		domain.PackageInfo{
			Name:  "com.example.app",
			Label: "Example",
			Components: map[string]domain.ComponentType{
				"com.example.app.TrackerActivity": domain.ComponentActivity,
				"com.example.app.MainActivity":    domain.ComponentActivity,
			},
		},
		domain.PackageInfo{
			Name: "org.plain",
			Components: map[string]domain.ComponentType{
				"org.plain.Main":           domain.ComponentActivity,
				"io.ads.sdk.ReportService": domain.ComponentService,
				"x.io.ads.sdk.Embedded":    domain.ComponentReceiver,
			},
		},
	)
}

func TestClassify(t *testing.T) {
	c := New(nil, exampleInventory(), nil)
	assert.Equal(t, domain.ComponentActivity, c.Classify("activity"))
	assert.Equal(t, domain.ComponentReceiver, c.Classify("broadcast"))
	assert.Equal(t, domain.ComponentService, c.Classify("service"))
	assert.Equal(t, domain.ComponentUnknown, c.Classify("provider"))
}

func TestIsTracker_PrefixAndContains(t *testing.T) {
	c := New([]string{"io.ads.sdk", ""}, exampleInventory(), nil)
	assert.True(t, c.IsTracker("io.ads.sdk.ReportService"))
	assert.True(t, c.IsTracker("x.io.ads.sdk.Embedded"))
	assert.False(t, c.IsTracker("org.plain.Main"))
}

func TestTrackerComponents_ExampleScenario(t *testing.T) {
	c := New([]string{"com.example.app.Tracker"}, exampleInventory(), nil)
	got, err := c.TrackerComponents("com.example.app")
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.ComponentType{
		"com.example.app.TrackerActivity": domain.ComponentActivity,
	}, got)
}

func TestFilteredComponents(t *testing.T) {
	c := New([]string{"com.example.app.Tracker"}, exampleInventory(), nil)
	got, err := c.FilteredComponents("org.plain", []string{"io.ads"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = c.FilteredComponents("missing", []string{"io.ads"})
	assert.True(t, errors.Is(err, domain.ErrPackageNotFound))
}

func TestTrackerCounts_LabelFallback(t *testing.T) {
	c := New([]string{"io.ads.sdk", "com.example.app.Tracker"}, exampleInventory(), nil)
	got := c.TrackerCounts([]string{"com.example.app", "org.plain", "missing"})
	assert.Equal(t, []domain.ItemCount{
		{PackageName: "com.example.app", PackageLabel: "Example", Count: 1},
		{PackageName: "org.plain", PackageLabel: "org.plain", Count: 2},
		{PackageName: "missing", PackageLabel: "missing", Count: 0},
	}, got)
}

func TestLoadSignatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackers.txt")
	require.NoError(t, os.WriteFile(path, []byte("# header\nio.ads.sdk\n\ncom.track # inline\nio.ads.sdk\n"), 0o644))

	sigs, err := LoadSignatures(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"io.ads.sdk", "com.track"}, sigs)

	_, err = LoadSignatures(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}
