package privileged

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCommands_SDKSelection(t *testing.T) {
	modern := NewCommands(30)
	legacy := NewCommands(27)

	assert.Equal(t, "cmd package default-state pkg/pkg.A", modern.EnableComponent("pkg", "pkg.A"))
	assert.Equal(t, "cmd package disable pkg/pkg.A", modern.DisableComponent("pkg", "pkg.A"))
	assert.Equal(t, "cmd activity force-stop pkg", modern.ForceStop("pkg"))

	assert.Equal(t, "pm default-state pkg/pkg.A", legacy.EnableComponent("pkg", "pkg.A"))
	assert.Equal(t, "pm disable pkg/pkg.A", legacy.DisableComponent("pkg", "pkg.A"))
	assert.Equal(t, "am force-stop pkg", legacy.ForceStop("pkg"))
}

func TestCommands_RuleFiles(t *testing.T) {
	c := NewCommands(27)

	assert.Equal(t,
		"cp '/local/pkg.xml' '/data/system/ifw/pkg.xml.tmp' && chmod 0666 '/data/system/ifw/pkg.xml.tmp' && "+
			"mv -f '/data/system/ifw/pkg.xml.tmp' '/data/system/ifw/pkg.xml' && am force-stop pkg",
		c.PublishRules("/local/pkg.xml", "/data/system/ifw/", "pkg"))
	assert.Equal(t,
		"test -e '/data/system/ifw/pkg.xml' && rm -rf '/data/system/ifw/pkg.xml' && am force-stop pkg",
		c.RemoveRules("/data/system/ifw", "pkg"))
	assert.Equal(t, "test -e '/x/y.xml'", c.Exists("/x/y.xml"))
	assert.Equal(t, "cp '/a' '/b' && chmod 0666 '/b'", c.CopyOut("/a", "/b"))
	assert.Equal(t, "ls /data/system/ifw/pkg*.xml", c.List("/data/system/ifw/pkg*.xml"))
	assert.Equal(t, "cat '/data/system/ifw/pkg.xml'", c.Cat("/data/system/ifw/pkg.xml"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'plain'", Quote("plain"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
	assert.Equal(t, "''", Quote(""))
}

func TestRulesFile(t *testing.T) {
	assert.Equal(t, "/data/system/ifw/com.example.xml", RulesFile("/data/system/ifw/", "com.example"))
	assert.Equal(t, "/data/system/ifw/com.example.xml", RulesFile("/data/system/ifw", "com.example"))
}
