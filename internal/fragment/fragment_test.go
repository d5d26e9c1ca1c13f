package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsEmptyExpression(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestNew_DefaultsSourceTableToResource(t *testing.T) {
	f, err := New("resource.active")
	require.NoError(t, err)
	assert.Equal(t, "resource", f.SourceTable)
	assert.Empty(t, f.Dependencies)
	assert.NotNil(t, f.Metadata)
}

func TestNewWithSource_EmptySourceFallsBackToResource(t *testing.T) {
	f, err := NewWithSource("x", "")
	require.NoError(t, err)
	assert.Equal(t, "resource", f.SourceTable)
}

func TestNewWithSource_RejectsEmptyExpression(t *testing.T) {
	_, err := NewWithSource("", "cte_1")
	require.Error(t, err)
}

func TestNewWithSource_KeepsExplicitSourceTable(t *testing.T) {
	f, err := NewWithSource("name_item", "cte_1")
	require.NoError(t, err)
	assert.Equal(t, "cte_1", f.SourceTable)
}

func TestAddDependency_PreservesOrderAndDedups(t *testing.T) {
	f, err := New("x")
	require.NoError(t, err)
	f.AddDependency("cte_1")
	f.AddDependency("cte_2")
	f.AddDependency("cte_1")
	assert.Equal(t, []string{"cte_1", "cte_2"}, f.Dependencies)
}

func TestMetadata_GetReturnsDefaultWhenAbsent(t *testing.T) {
	f, err := New("x")
	require.NoError(t, err)
	assert.Equal(t, "fallback", f.GetMetadata("missing", "fallback"))
	assert.False(t, f.MetadataBool("missing"))
	assert.Equal(t, "", f.MetadataString("missing"))
}

func TestMetadata_SetAndGetRoundTrip(t *testing.T) {
	f, err := New("x")
	require.NoError(t, err)
	f.SetMetadata("is_collection", true)
	f.SetMetadata("literal_type", "date")
	assert.True(t, f.MetadataBool("is_collection"))
	assert.Equal(t, "date", f.MetadataString("literal_type"))
	assert.Equal(t, true, f.GetMetadata("is_collection", false))
}

func TestMetadata_WrongTypeReadsAsZeroValue(t *testing.T) {
	f, err := New("x")
	require.NoError(t, err)
	f.SetMetadata("literal_type", 42)
	assert.Equal(t, "", f.MetadataString("literal_type"))
}

func TestSetMetadata_InitializesNilMap(t *testing.T) {
	f := &Fragment{Expression: "x", SourceTable: "resource"}
	f.SetMetadata("k", "v")
	assert.Equal(t, "v", f.MetadataString("k"))
}

func TestClone_CopiesSlicesAndMapsIndependently(t *testing.T) {
	f, err := New("x")
	require.NoError(t, err)
	f.AddDependency("cte_1")
	f.SetMetadata("is_collection", true)

	c := f.Clone()
	c.AddDependency("cte_2")
	c.SetMetadata("is_collection", false)

	assert.Equal(t, []string{"cte_1"}, f.Dependencies)
	assert.Equal(t, []string{"cte_1", "cte_2"}, c.Dependencies)
	assert.True(t, f.MetadataBool("is_collection"))
	assert.False(t, c.MetadataBool("is_collection"))
}

func TestClone_CopiesScalarFields(t *testing.T) {
	f, err := NewWithSource("x", "cte_1")
	require.NoError(t, err)
	f.RequiresUnnest = true
	f.IsAggregate = true

	c := f.Clone()
	assert.Equal(t, f.Expression, c.Expression)
	assert.Equal(t, f.SourceTable, c.SourceTable)
	assert.True(t, c.RequiresUnnest)
	assert.True(t, c.IsAggregate)
}
