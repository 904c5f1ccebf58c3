package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	err := os.WriteFile(path, []byte(content), 0600)
	require.NoError(t, err)
}

func newTestMappingStore(dir string) *MappingStore {
	return NewMappingStore(
		filepath.Join(dir, "overrides.yaml"),
		filepath.Join(dir, "keyword_groups.yaml"),
		logging.NewMockLogger(),
	)
}

func TestNewMappingStore_Defaults(t *testing.T) {
	s := NewMappingStore("", "", nil)
	assert.Equal(t, DefaultOverridesFile, s.OverridesFile)
	assert.Equal(t, DefaultKeywordGroupsFile, s.KeywordGroupsFile)
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "test.yaml")
	writeFile(t, testFile, "test content")

	s := NewMappingStore("", "", nil)

	file, err := s.FindConfigFile(testFile)
	assert.NoError(t, err)
	assert.Equal(t, testFile, file)

	_, err = s.FindConfigFile(filepath.Join(dir, "nonexistent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMappingStore_Overrides(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "overrides.yaml"), `
Swisscom SA:
  account: "6510"
  label: Télécommunications
  vat_deductible: true
`)
	s := newTestMappingStore(dir)

	m, err := s.GetOverride(ctx, "SWISSCOM  sa")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "6510", m.Account)
	assert.True(t, m.VATDeductible)

	missing, err := s.GetOverride(ctx, "Unknown AG")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = s.SaveOverride(ctx, "Café Müller", models.AccountMapping{Account: "6570", Label: "Frais de représentation"})
	require.NoError(t, err)

	all, err := s.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "6570", all[OverrideKey("cafe muller")].Account)
	assert.Equal(t, []string{"cafe muller", "swisscom sa"}, SortedKeys(all))
}

func TestMappingStore_SaveOverrideRequiresCounterparty(t *testing.T) {
	s := newTestMappingStore(t.TempDir())
	err := s.SaveOverride(context.Background(), "   ", models.AccountMapping{Account: "6500"})
	assert.Error(t, err)
}

func TestMappingStore_MalformedOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "overrides.yaml"), `{malformed: yaml: content}`)
	s := newTestMappingStore(dir)
	_, err := s.GetOverride(context.Background(), "x")
	assert.Error(t, err)
}

func TestMappingStore_LoadKeywordGroups(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name: "wrapped form",
			content: `groups:
  - category: informatique
    keywords: [logiciel, licence]
  - category: telecom
    keywords: [swisscom]
`,
			want: []string{"informatique", "telecom"},
		},
		{
			name: "bare list",
			content: `- category: loyer
  keywords: [loyer, bail]
`,
			want: []string{"loyer"},
		},
		{
			name:    "malformed",
			content: `groups: [unclosed`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "keyword_groups.yaml"), tt.content)
			groups, err := newTestMappingStore(dir).LoadKeywordGroups()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var cats []string
			for _, g := range groups {
				cats = append(cats, g.Category)
			}
			assert.Equal(t, tt.want, cats)
		})
	}
}

func TestMappingStore_LoadKeywordGroupsMissingFile(t *testing.T) {
	groups, err := newTestMappingStore(t.TempDir()).LoadKeywordGroups()
	assert.NoError(t, err)
	assert.Nil(t, groups)
}
