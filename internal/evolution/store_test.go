package evolution

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
)

func TestPlaybookStore_InitialVersionPersisted(t *testing.T) {
	dir := t.TempDir()
	s, err := NewPlaybookStore(dir, "the schema", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 0, s.LatestVersion())
	assert.Equal(t, "the schema", s.Latest())

	data, err := os.ReadFile(filepath.Join(dir, "playbook_v0.txt"))
	require.NoError(t, err)
	assert.Equal(t, "the schema", string(data))
}

func TestPlaybookStore_AppendPersistsPlaybookAndRawResponse(t *testing.T) {
	dir := t.TempDir()
	s, err := NewPlaybookStore(dir, "v0", zaptest.NewLogger(t))
	require.NoError(t, err)

	version, err := s.Append("extracted v1", "raw response with ```extracted v1```")
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, "extracted v1", s.Latest())
	assert.Equal(t, []string{"v0", "extracted v1"}, s.History())

	pb, err := os.ReadFile(filepath.Join(dir, "playbook_v1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "extracted v1", string(pb))

	raw, err := os.ReadFile(filepath.Join(dir, "playbook_v1.response.txt"))
	require.NoError(t, err)
	assert.Equal(t, "raw response with ```extracted v1```", string(raw))
}

func TestPlaybookStore_EarlierVersionsAreNeverModified(t *testing.T) {
	dir := t.TempDir()
	s, err := NewPlaybookStore(dir, "v0", zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = s.Append("v1", "r1")
	require.NoError(t, err)
	v1Before, err := os.ReadFile(filepath.Join(dir, "playbook_v1.txt"))
	require.NoError(t, err)

	_, err = s.Append("v2", "r2")
	require.NoError(t, err)
	_, err = s.Append("v3", "r3")
	require.NoError(t, err)

	v1After, err := os.ReadFile(filepath.Join(dir, "playbook_v1.txt"))
	require.NoError(t, err)
	assert.Equal(t, v1Before, v1After, "persisted artifact for v1 must not change")

	// The in-memory history only grows.
	assert.Equal(t, []string{"v0", "v1", "v2", "v3"}, s.History())
}

func TestPlaybookStore_HistoryIsACopy(t *testing.T) {
	s, err := NewPlaybookStore(t.TempDir(), "v0", zaptest.NewLogger(t))
	require.NoError(t, err)

	h := s.History()
	h[0] = "mutated"
	assert.Equal(t, "v0", s.Latest())
	assert.Equal(t, []string{"v0"}, s.History())
}

func TestGenerationLog_AppendPersistsArtifact(t *testing.T) {
	dir := t.TempDir()
	l, err := NewGenerationLog(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	gen := schemas.Generation{Step: 4, TaskIndex: 1, PlaybookVersion: 2, Text: "the attempt"}
	require.NoError(t, l.Append(gen))

	data, err := os.ReadFile(filepath.Join(dir, "004_task001_v2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "the attempt", string(data))

	history := l.History()
	require.Len(t, history, 1)
	assert.Equal(t, gen, history[0])
}

func TestArtifactName_IsTotalAndCollisionFree(t *testing.T) {
	assert.Equal(t, "000_task000_v0.txt", ArtifactName(0, 0, 0))
	assert.Equal(t, "012_task003_v4.txt", ArtifactName(12, 3, 4))
	// Distinct identities map to distinct names.
	assert.NotEqual(t, ArtifactName(1, 2, 3), ArtifactName(1, 2, 4))
	assert.NotEqual(t, ArtifactName(1, 2, 3), ArtifactName(2, 1, 3))
}

func TestAtomicWriteFile_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, atomicWriteFile(path, []byte("payload")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.txt", entries[0].Name())
}
