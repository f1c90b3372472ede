package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
)

// batchStub counts how the sweep reaches the model.
type batchStub struct {
	single int
	batch  int
}

func (b *batchStub) Predict(x [3]float64) (int, error) { return 0, nil }

func (b *batchStub) PredictProba(x [3]float64) ([2]float64, error) {
	b.single++
	return ml.HeuristicProba(x)
}

func (b *batchStub) PredictProbaBatch(xs [][3]float64) ([][2]float64, error) {
	b.batch++
	out := make([][2]float64, len(xs))
	for i, x := range xs {
		out[i], _ = ml.HeuristicProba(x)
	}
	return out, nil
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, Linspace(0, 100, 5))
	assert.Equal(t, []float64{3}, Linspace(3, 9, 1))
	assert.Nil(t, Linspace(0, 1, 0))

	xs := Linspace(-5, 45, 7)
	assert.Equal(t, -5.0, xs[0])
	assert.Equal(t, 45.0, xs[len(xs)-1])
}

func TestDefaultGrid(t *testing.T) {
	grid, err := DefaultGrid(features.Humidity, 11)
	require.NoError(t, err)
	min, max := features.Humidity.Domain()
	assert.Equal(t, min, grid[0])
	assert.Equal(t, max, grid[10])

	_, err = DefaultGrid(features.Humidity, 1)
	assert.ErrorIs(t, err, ErrInvalidGrid)
	_, err = DefaultGrid(features.Axis(7), 10)
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestSweep1D_HumidityLowersRisk(t *testing.T) {
	fixed := features.New(50, 15, 25)
	grid := Linspace(20, 100, 9)

	points, err := Sweep1D(ml.ProbaFunc(ml.HeuristicProba), features.Humidity, fixed, grid)
	require.NoError(t, err)
	require.Len(t, points, len(grid))

	prev := 2.0
	for i, pt := range points {
		assert.Equal(t, grid[i], pt.Value)
		p, ok := pt.Probability.Value()
		require.True(t, ok)
		assert.LessOrEqual(t, p, prev)
		prev = p
	}
}

func TestSweep1D_LabelOnlyModelGivesHoles(t *testing.T) {
	calls := 0
	clf := ml.LabelFunc(func([3]float64) (int, error) {
		calls++
		return 1, nil
	})

	points, err := Sweep1D(clf, features.Temperature, features.Default(), Linspace(0, 40, 5))
	require.NoError(t, err)
	require.Len(t, points, 5)
	for _, pt := range points {
		assert.False(t, pt.Probability.IsAvailable())
	}
	assert.Zero(t, calls)
}

func TestSweep1D_RejectsOutOfDomainGrid(t *testing.T) {
	_, err := Sweep1D(ml.ProbaFunc(ml.HeuristicProba), features.Humidity, features.Default(), []float64{50, 150})
	assert.ErrorIs(t, err, features.ErrInvalidInput)
}

func TestSweep2D(t *testing.T) {
	stub := &batchStub{}
	fixed := features.New(50, 15, 25)
	gridA := Linspace(0, 40, 3)
	gridB := Linspace(20, 80, 4)

	grid, err := Sweep2D(stub, features.Temperature, features.Humidity, fixed, gridA, gridB)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.batch)
	assert.Zero(t, stub.single)
	require.Len(t, grid.Cells, 3)
	for _, row := range grid.Cells {
		assert.Len(t, row, 4)
	}
	assert.Zero(t, grid.Holes())

	// Cell (i, j) uses temperature=gridA[i], humidity=gridB[j], wind fixed.
	want, _ := ml.HeuristicProba([3]float64{gridB[2], 15, gridA[1]})
	got, ok := grid.Cells[1][2].Value()
	require.True(t, ok)
	assert.InDelta(t, want[1], got, 1e-12)
}

func TestSweep2D_LabelOnlyModel(t *testing.T) {
	clf := ml.LabelFunc(func([3]float64) (int, error) { return 0, nil })

	grid, err := Sweep2D(clf, features.Humidity, features.WindSpeed, features.Default(), Linspace(20, 100, 3), Linspace(0, 40, 3))
	require.NoError(t, err)
	assert.Equal(t, 9, grid.Holes())
}

func TestSweep2D_SameAxis(t *testing.T) {
	_, err := Sweep2D(ml.ProbaFunc(ml.HeuristicProba), features.Humidity, features.Humidity, features.Default(), []float64{30}, []float64{40})
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestEvaluator_Heatmap(t *testing.T) {
	m := newMockMetrics()
	e := NewEvaluator(staticSource{clf: ml.ProbaFunc(ml.HeuristicProba)}, m)

	grid, err := e.Heatmap(features.Temperature, features.Humidity, features.Default(), 5)
	require.NoError(t, err)

	assert.Len(t, grid.ValuesA, 5)
	assert.Len(t, grid.ValuesB, 5)
	assert.Equal(t, 25, m.sweepEvals)
}
