package plans

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := NewCatalog()

	list := catalog.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"solo", "team", "clinic"}, []string{list[0].ID, list[1].ID, list[2].ID})

	solo, ok := catalog.Get("solo")
	require.True(t, ok)
	assert.Equal(t, 1, solo.MaxProfessionals)
	assert.True(t, solo.HasPermission(FeatureScheduling))
	assert.False(t, solo.HasPermission(FeatureFinancialReports))

	clinic, ok := catalog.Get("clinic")
	require.True(t, ok)
	assert.True(t, clinic.HasPermission(FeatureMultiUnit))
	require.NotNil(t, clinic.AnnualPrice)
	assert.Equal(t, "1990", clinic.AnnualPrice.String())
}

func TestCatalogReturnsCopies(t *testing.T) {
	catalog := NewCatalog()

	plan, ok := catalog.Get("solo")
	require.True(t, ok)
	plan.Name = "Mutated"

	again, ok := catalog.Get("solo")
	require.True(t, ok)
	assert.Equal(t, "Solo", again.Name)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - id: starter
    name: Starter
    price: "29"
    annual_price: "290"
    max_professionals: 2
    permissions: [scheduling]
    active: true
  - id: pro
    name: Pro
    price: "149"
    max_professionals: 10
    permissions: [scheduling, online_booking, financial_reports]
    active: true
`), 0644))

	catalog := NewCatalog()
	require.NoError(t, catalog.LoadFromFile(path))

	list := catalog.List()
	require.Len(t, list, 2)
	assert.Equal(t, "starter", list[0].ID)

	pro, ok := catalog.Get("pro")
	require.True(t, ok)
	assert.Equal(t, "149", pro.Price.String())
	assert.True(t, pro.HasPermission(FeatureFinancialReports))
	assert.Nil(t, pro.AnnualPrice)

	_, ok = catalog.Get("solo")
	assert.False(t, ok, "file contents replace the defaults")
}

func TestLoadFromFileRejectsBadContent(t *testing.T) {
	catalog := NewCatalog()
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, catalog.LoadFromFile(filepath.Join(dir, "missing.yaml")))
	})

	t.Run("empty plan list", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("plans: []\n"), 0644))
		assert.Error(t, catalog.LoadFromFile(path))
	})

	t.Run("plan without id", func(t *testing.T) {
		path := filepath.Join(dir, "noid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("plans:\n  - name: Nameless\n"), 0644))
		assert.Error(t, catalog.LoadFromFile(path))
	})

	// Failed loads keep the previous catalog.
	list := catalog.List()
	assert.Len(t, list, 3)
}

func TestValidStripePriceID(t *testing.T) {
	assert.True(t, ValidStripePriceID("price_1ABC"))
	assert.True(t, ValidStripePriceID("price_x"))
	assert.False(t, ValidStripePriceID("abc123"))
	assert.False(t, ValidStripePriceID("price_"))
	assert.False(t, ValidStripePriceID(""))
	assert.False(t, ValidStripePriceID("prod_123"))
}
