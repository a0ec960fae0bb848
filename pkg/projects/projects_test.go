package projects

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"1. freeCodeCamp → freeCodeCamp/freeCodeCamp",
		"",
		"   torvalds/linux   ",
		"react → facebook/react",
		"facebook/react",
		"not a project",
		"owner/",
		"a/b/c",
		"vue → vuejs/core",
	}, "\n")

	list, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"freeCodeCamp/freeCodeCamp",
		"torvalds/linux",
		"facebook/react",
		"vuejs/core",
	}, list.Projects)
	assert.Equal(t, 1, list.Duplicates)

	require.Len(t, list.Rejected, 3)
	assert.Equal(t, 6, list.Rejected[0].Line)
	assert.Equal(t, "not a project", list.Rejected[0].Text)
	assert.Error(t, list.Rejected[0].Err)
}

func TestValidate(t *testing.T) {
	valid := []string{"octo/demo", "a/b", "kubernetes/kubernetes"}
	for _, id := range valid {
		assert.NoError(t, Validate(id), id)
	}

	invalid := []string{"", "octo", "/demo", "octo/", "a/b/c", "oc to/demo"}
	for _, id := range invalid {
		assert.Error(t, Validate(id), id)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top300_projects_list.txt")
	require.NoError(t, os.WriteFile(path, []byte("x → octo/demo\nocto/other\n"), 0644))

	list, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"octo/demo", "octo/other"}, list.Projects)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "octo_demo.json", FileName("octo/demo"))
}
