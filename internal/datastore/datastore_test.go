package datastore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	store := New()

	store.Put("site/P_PV", DataPoint{Value: 1200.0, Unit: "W", Time: 100})

	point, ok := store.Get("site/P_PV")
	require.True(t, ok)
	assert.Equal(t, 1200.0, point.Value)
	assert.Equal(t, "W", point.Unit)
	assert.Equal(t, 100.0, point.Time)

	_, ok = store.Get("site/P_Grid")
	assert.False(t, ok)
}

func TestPutOverwrites(t *testing.T) {
	store := New()

	store.Put("site/E_Day", DataPoint{Value: 1.0, Time: 1})
	store.Put("site/E_Day", DataPoint{Value: 2.0, Time: 2})

	point, ok := store.Get("site/E_Day")
	require.True(t, ok)
	assert.Equal(t, 2.0, point.Value)
	assert.Equal(t, 1, store.Len())
}

func TestPathsAreCleaned(t *testing.T) {
	store := New()

	store.Put("/Inverters//1/P", DataPoint{Value: 5.0})

	_, ok := store.Get("Inverters/1/P")
	assert.True(t, ok)
}

func TestPutAll(t *testing.T) {
	store := New()

	store.PutAll([]Entry{
		{Path: "site/P_PV", Point: DataPoint{Value: 1.0}},
		{Path: "site/P_Load", Point: DataPoint{Value: 2.0}},
	})

	assert.Equal(t, 2, store.Len())
}

func TestLatestOnlyHoldsLastBatch(t *testing.T) {
	store := New()
	assert.Empty(t, store.Latest())

	store.PutAll([]Entry{
		{Path: "site/P_PV", Point: DataPoint{Value: 2500.0}},
		{Path: "site/E_Day", Point: DataPoint{Value: 8000.0}},
	})
	store.PutAll([]Entry{
		{Path: "/site/E_Day", Point: DataPoint{Value: 9000.0}},
	})

	latest := store.Latest()
	require.Len(t, latest, 1)
	assert.Equal(t, "site/E_Day", latest[0].Path)
	assert.Equal(t, 9000.0, latest[0].Point.Value)

	// the store itself keeps the older point
	_, ok := store.Get("site/P_PV")
	assert.True(t, ok)

	store.Reset()
	assert.Empty(t, store.Latest())
}

func TestList(t *testing.T) {
	store := New()
	store.Put("site/P_PV", DataPoint{Value: 1.0})
	store.Put("site/E_Day", DataPoint{Value: 2.0})
	store.Put("Inverters/1/P", DataPoint{Value: 3.0})
	store.Put("sitefoo/x", DataPoint{Value: 4.0})

	entries := store.List("site")
	require.Len(t, entries, 2)
	assert.Equal(t, "site/E_Day", entries[0].Path)
	assert.Equal(t, "site/P_PV", entries[1].Path)

	assert.Len(t, store.List(""), 4)
	assert.Empty(t, store.List("SecondaryMeters"))
}

func TestSnapshotIsCopy(t *testing.T) {
	store := New()
	store.Put("site/P_PV", DataPoint{Value: 1.0})

	snapshot := store.Snapshot()
	delete(snapshot, "site/P_PV")

	assert.Equal(t, 1, store.Len())
}

func TestReset(t *testing.T) {
	store := New()
	store.Put("site/P_PV", DataPoint{Value: 1.0})

	store.Reset()

	assert.Equal(t, 0, store.Len())
}

func TestDataPointJSON(t *testing.T) {
	point := DataPoint{Value: 0.573, Unit: "/", Time: 1600000000.5, Tags: map[string]interface{}{"src": "powerflow"}}

	b, err := json.Marshal(point)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":0.573,"u":"/","t":1600000000.5,"src":"powerflow"}`, string(b))

	var decoded DataPoint
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, point, decoded)
}

func TestDataPointJSONOmitsEmpty(t *testing.T) {
	b, err := json.Marshal(DataPoint{Value: "Mode"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"Mode"}`, string(b))
}

func TestEpochSeconds(t *testing.T) {
	ts := time.Unix(1600000000, int64(250*time.Millisecond))
	assert.InDelta(t, 1600000000.25, EpochSeconds(ts), 1e-6)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "Inverters/1/SOC", Join("Inverters", "1", "SOC"))
}
