package analysis

import (
	"errors"
	"testing"

	"github.com/crosstab/crosstab-go/inputs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func single(id string, values ...interface{}) inputs.Spec {
	return inputs.Spec{ID: id, Kind: inputs.SelectSingle, Domain: inputs.Values(values...)}
}

func multi(id string, values ...interface{}) inputs.Spec {
	return inputs.Spec{ID: id, Kind: inputs.SelectMultiple, Domain: inputs.Values(values...)}
}

func registry(t *testing.T, specs ...inputs.Spec) *inputs.Registry {
	t.Helper()
	reg, err := inputs.NewRegistry(specs...)
	require.NoError(t, err)
	return reg
}

func geoGraph(t *testing.T) *Graph {
	t.Helper()
	reg := registry(t,
		single("country", "US", "FR"),
		single("state", "CA", "NY", "IDF"),
		multi("city", "LA", "SF", "NYC", "Paris"),
	)
	g, err := BuildGraph([]Edge{
		NewEdge("country", "state", map[interface{}][]interface{}{"US": {"CA", "NY"}, "FR": {"IDF"}}),
		NewEdge("state", "city", map[interface{}][]interface{}{"CA": {"LA", "SF"}, "NY": {"NYC"}, "IDF": {"Paris"}}),
	}, reg)
	require.NoError(t, err)
	return g
}

func TestPropagateResetsInvalidChildren(t *testing.T) {
	g := geoGraph(t)
	state := inputs.State{"country": "FR", "state": "CA", "city": []interface{}{"LA", "SF"}}

	dirty := g.Propagate(state, "country")

	assert.Equal(t, []string{"country", "state", "city"}, dirty)
	assert.Equal(t, "IDF", state["state"])
	assert.Equal(t, []interface{}{"Paris"}, state["city"])
}

func TestPropagateKeepsValidValues(t *testing.T) {
	g := geoGraph(t)
	state := inputs.State{"country": "US", "state": "CA", "city": []interface{}{"SF", "NYC"}}

	g.Propagate(state, "country")

	assert.Equal(t, "CA", state["state"])
	assert.Equal(t, []interface{}{"SF"}, state["city"])
}

func TestAllows(t *testing.T) {
	g := geoGraph(t)
	state := inputs.State{"country": "FR", "state": "IDF"}

	tests := []struct {
		name  string
		child string
		value interface{}
		want  bool
	}{
		{"root accepts anything", "country", "US", true},
		{"option of parent", "state", "IDF", true},
		{"option of another parent value", "state", "CA", false},
		{"single nil", "state", nil, false},
		{"multi subset", "city", []interface{}{"Paris"}, true},
		{"multi outside", "city", []interface{}{"Paris", "LA"}, false},
		{"multi empty", "city", []interface{}{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Allows(tt.child, state, tt.value))
		})
	}
}

func TestPropagateVisitsSharedGrandchildOnce(t *testing.T) {
	reg := registry(t,
		single("a", "x", "y"),
		single("b", 1, 2),
		single("c", 1, 2),
		single("d", "p", "q", "r"),
	)
	g, err := BuildGraph([]Edge{
		NewEdge("a", "b", map[interface{}][]interface{}{"x": {1}, "y": {2}}),
		NewEdge("a", "c", map[interface{}][]interface{}{"x": {1}, "y": {1, 2}}),
		NewEdge("b", "d", map[interface{}][]interface{}{1: {"p", "q"}, 2: {"q", "r"}}),
		NewEdge("c", "d", map[interface{}][]interface{}{1: {"q", "r"}, 2: {"r"}}),
	}, reg)
	require.NoError(t, err)

	state := inputs.State{"a": "y", "b": 1.0, "c": 1.0, "d": "p"}
	dirty := g.Propagate(state, "a")

	assert.Equal(t, []string{"a", "b", "c", "d"}, dirty)
	assert.Equal(t, 2.0, state["b"])
	assert.Equal(t, 1.0, state["c"])
	assert.Equal(t, "q", state["d"])
}

func TestOptionsMultiValuedParentUnion(t *testing.T) {
	reg := registry(t,
		multi("regions", "N", "S"),
		single("store", "s1", "s2", "s3"),
	)
	g, err := BuildGraph([]Edge{
		NewEdge("regions", "store", map[interface{}][]interface{}{"N": {"s1", "s2"}, "S": {"s2", "s3"}}),
	}, reg)
	require.NoError(t, err)

	options, ok := g.Options("store", inputs.State{"regions": []interface{}{"N", "S"}})
	assert.True(t, ok)
	assert.Equal(t, []interface{}{"s1", "s2", "s3"}, options)

	options, _ = g.Options("store", inputs.State{"regions": []interface{}{}})
	assert.Equal(t, []interface{}{"s1", "s2", "s3"}, options)

	_, ok = g.Options("regions", inputs.State{})
	assert.False(t, ok)
}

func TestPropagateEmptyOptionsClearsValue(t *testing.T) {
	reg := registry(t, single("a", "x", "y"), single("b", 1, 2))
	g, err := BuildGraph([]Edge{
		NewEdge("a", "b", map[interface{}][]interface{}{"x": {1}}),
	}, reg)
	require.NoError(t, err)

	state := inputs.State{"a": "y", "b": 1.0}
	g.Propagate(state, "a")
	assert.Nil(t, state["b"])
}

func TestOrderTieBreaksByDeclaration(t *testing.T) {
	reg := registry(t, single("z", 1), single("y", 1), single("x", 1))

	g, err := BuildGraph(nil, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, g.Order())

	g, err = BuildGraph([]Edge{NewEdge("x", "z", map[interface{}][]interface{}{1: {1}})}, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x", "z"}, g.Order())
	assert.Equal(t, []string{"x"}, g.Parents("z"))
}

func TestBuildGraphDetectsCycles(t *testing.T) {
	reg := registry(t, single("a", 1), single("b", 1), single("c", 1))
	link := func(p, c string) Edge { return NewEdge(p, c, map[interface{}][]interface{}{1: {1}}) }

	_, err := BuildGraph([]Edge{link("a", "b"), link("b", "c"), link("c", "a")}, reg)
	var cyclic *CyclicDependencyError
	require.True(t, errors.As(err, &cyclic))
	assert.Equal(t, []string{"a", "b", "c", "a"}, cyclic.Cycle)
	assert.EqualError(t, err, "cyclic input dependency: a -> b -> c -> a")

	_, err = BuildGraph([]Edge{link("b", "b")}, reg)
	require.True(t, errors.As(err, &cyclic))
	assert.Equal(t, []string{"b", "b"}, cyclic.Cycle)
}

func TestBuildGraphValidatesEdges(t *testing.T) {
	reg := registry(t,
		single("country", "US"),
		inputs.Spec{ID: "search", Kind: inputs.Text},
	)
	_, err := BuildGraph([]Edge{
		{Parent: "countyr", Child: "country"},
		{Parent: "country", Child: "search"},
	}, reg)
	require.Error(t, err)

	var unknown *inputs.UnknownInputError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []string{"country"}, unknown.Suggestions)

	var invalid *InvalidEdgeError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "search", invalid.Child)
}

func TestRevalidate(t *testing.T) {
	options := []interface{}{"a", "b"}
	assert.Equal(t, "b", Revalidate(false, "b", options))
	assert.Equal(t, "a", Revalidate(false, "z", options))
	assert.Equal(t, "a", Revalidate(false, nil, options))
	assert.Equal(t, []interface{}{"b"}, Revalidate(true, []interface{}{"z", "b"}, options))
	assert.Equal(t, []interface{}{"a"}, Revalidate(true, []interface{}{"z"}, options))
	assert.Nil(t, Revalidate(true, []interface{}{"a"}, nil))
}

func TestBuildCoverage(t *testing.T) {
	reg := registry(t, single("a", 1), single("b", 1), single("c", 1))
	report := BuildCoverage(reg, Used([]string{"a", "zz"}, []string{"c", "a"}))

	assert.Equal(t, []string{"a", "c", "zz"}, report.UsedInputs)
	assert.Equal(t, []string{"zz"}, report.UnknownInputs)
	assert.Equal(t, []string{"b"}, report.UnusedInputs)
}
