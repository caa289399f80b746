package taxonomy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" tc2 ")
	require.NoError(t, err)
	assert.Equal(t, TierTC2, tier)

	_, err = ParseTier("TC3")
	require.ErrorIs(t, err, ErrUnknownTier)
}

func TestLookupIsTierScoped(t *testing.T) {
	table, err := NewTable([]CompetencyEntry{
		{Code: "5.1TC1a", Tier: TierTC1, Description: "Giải quyết vấn đề kỹ thuật đơn giản."},
		{Code: "2.2TC2a", Tier: TierTC2, Description: "Chia sẻ nội dung số."},
	}, nil)
	require.NoError(t, err)

	entry, err := table.Lookup(TierTC1, "5.1TC1a")
	require.NoError(t, err)
	assert.Equal(t, "Giải quyết vấn đề kỹ thuật đơn giản.", entry.Description)

	_, err = table.Lookup(TierTC2, "5.1TC1a")
	require.ErrorIs(t, err, ErrUnknownCode)

	requirement, found := table.Requirement(TierTC2, "5.1TC1a")
	assert.False(t, found)
	assert.Equal(t, NotFoundRequirement, requirement)
}

func TestNewTableRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []CompetencyEntry
		wantErr string
	}{
		{
			name:    "missing code",
			entries: []CompetencyEntry{{Tier: TierTC1, Description: "x"}},
			wantErr: "code is required",
		},
		{
			name:    "unknown tier",
			entries: []CompetencyEntry{{Code: "1.1X", Tier: "X", Description: "x"}},
			wantErr: "unknown tier",
		},
		{
			name:    "empty description",
			entries: []CompetencyEntry{{Code: "1.1TC1a", Tier: TierTC1, Description: "  "}},
			wantErr: "description is required",
		},
		{
			name: "duplicate code in tier",
			entries: []CompetencyEntry{
				{Code: "1.1TC1a", Tier: TierTC1, Description: "a"},
				{Code: "1.1TC1a", Tier: TierTC1, Description: "b"},
			},
			wantErr: "duplicate code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.entries, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSameDescriptionAcrossTiers(t *testing.T) {
	description := "Chia sẻ dữ liệu, thông tin và nội dung số."
	table, err := NewTable([]CompetencyEntry{
		{Code: "2.2TC1a", Tier: TierTC1, Description: description},
		{Code: "2.2TC2a", Tier: "tc2", Description: description},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []Tier{TierTC1, TierTC2}, table.Tiers())
}

func TestEntriesReturnsCopy(t *testing.T) {
	table, err := NewTable([]CompetencyEntry{
		{Code: "1.1TC1a", Tier: TierTC1, Description: "Tìm kiếm thông tin."},
	}, nil)
	require.NoError(t, err)

	entries := table.Entries(TierTC1)
	entries[0].Description = "changed"

	entry, err := table.Lookup(TierTC1, "1.1TC1a")
	require.NoError(t, err)
	assert.Equal(t, "Tìm kiếm thông tin.", entry.Description)
}

func TestDefault(t *testing.T) {
	table, profiles, err := Default()
	require.NoError(t, err)

	entry, err := table.Lookup(TierTC1, "3.1TC1a")
	require.NoError(t, err)
	assert.Equal(t, "3", entry.Domain)
	assert.Equal(t, "Sáng tạo nội dung số", table.Domain(entry.Domain))

	_, err = table.Lookup(TierTC2, "5.1TC1a")
	require.ErrorIs(t, err, ErrUnknownCode)

	assert.Equal(t, []string{"Toán", "Văn", "Tin", "Sử", "Địa", "Anh", "Công nghệ", "KHTN"}, profiles.Names())

}

func TestDefaultFallbackCodesResolve(t *testing.T) {
	table, profiles, err := Default()
	require.NoError(t, err)

	for _, profile := range profiles.All() {
		for _, tier := range table.Tiers() {
			code := profile.DefaultCodeFor(tier)
			require.NotEmpty(t, code, "subject %s tier %s", profile.Name, tier)

			entry, err := table.Lookup(tier, code)
			if assert.NoError(t, err, "subject %s tier %s", profile.Name, tier) {
				assert.Equal(t, tier, entry.Tier)
			}
		}
	}
}

func TestLoadTableRejectsUnknownFields(t *testing.T) {
	_, err := LoadTable(strings.NewReader("competencies:\n  - code: 1.1TC1a\n    tier: TC1\n    descripton: typo\n"))
	require.Error(t, err)
}
