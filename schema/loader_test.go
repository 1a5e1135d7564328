package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/shape"
)

const personShapeYAML = `
schema: person
class: semlink:Person
shape:
  fields:
    name: {minCount: 1, datatype: xsd:string}
`

const documentShapeYAML = `
schema: document
class: semlink:Document
shape:
  fields:
    title: {minCount: 1}
`

func writeShapeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	personPath := writeShapeFile(t, dir, "person.shape.yaml", personShapeYAML)
	docPath := writeShapeFile(t, dir, filepath.Join("nested", "document.shape.yaml"), documentShapeYAML)
	writeShapeFile(t, dir, "notes.yaml", "schema: ignored\nshape: {minCount: 1}\n")
	writeShapeFile(t, dir, "README.md", "not a shape file")

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	person, ok := defs["person"]
	require.True(t, ok)
	assert.Equal(t, "https://semlink.dev/ontology/Person", person.Class)
	assert.Equal(t, personPath, person.Source)
	assert.NotNil(t, person.Shape)

	document, ok := defs["document"]
	require.True(t, ok)
	assert.Equal(t, docPath, document.Source)
}

func TestLoadDirEmpty(t *testing.T) {
	defs, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoadDirDuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeShapeFile(t, dir, "a.shape.yaml", personShapeYAML)
	writeShapeFile(t, dir, "b.shape.yaml", personShapeYAML)

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `schema "person" already defined`)
	assert.Contains(t, err.Error(), "a.shape.yaml")
}

func TestLoadDirReportsFile(t *testing.T) {
	dir := t.TempDir()
	writeShapeFile(t, dir, "broken.shape.yaml", "shape: {minCount: 1}\n")

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.shape.yaml")
	assert.Contains(t, err.Error(), "schema name is required")
}

func TestLoadFillsRegistry(t *testing.T) {
	dir := t.TempDir()
	writeShapeFile(t, dir, "person.shape.yaml", personShapeYAML)
	writeShapeFile(t, dir, "document.shape.yaml", documentShapeYAML)

	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "stale", Shape: shape.NewMinCount(1)}))

	count, err := Load(reg, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"document", "person"}, reg.Names())

	// The previous definition set is replaced, not merged.
	_, ok := reg.Lookup("stale")
	assert.False(t, ok)
}
