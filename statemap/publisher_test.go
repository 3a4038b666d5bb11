package statemap

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotPublisher(t *testing.T) {
	p := NewSnapshotPublisher(nil, "")
	if p == nil {
		t.Fatal("NewSnapshotPublisher() returned nil")
	}
	if p.publishPrefix != "stateboard" {
		t.Errorf("default prefix = %s, want stateboard", p.publishPrefix)
	}
	if p.qos != 0 {
		t.Errorf("default QoS = %d, want 0", p.qos)
	}
	if !p.retain {
		t.Error("default retain should be true")
	}
}

func TestSnapshotPublisher_NotConnected(t *testing.T) {
	err := NewSnapshotPublisher(nil, "x").PublishSnapshot(Snapshot{Code: "i1"})
	assert.Error(t, err)

	client := NewMockClient()
	err = NewSnapshotPublisher(client, "x").PublishSnapshot(Snapshot{Code: "i1"})
	assert.Error(t, err)
	assert.Empty(t, client.Published())
}

func TestSnapshotPublisher_Publish(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	p := NewSnapshotPublisher(client, "dash")

	s := Snapshot{Code: "i3", Rows: 32, Missing: []string{"32/ZAC"}, Labels: 30, Timestamp: 42}
	require.NoError(t, p.PublishSnapshot(s))

	msgs := client.Published()
	require.Len(t, msgs, 2)
	assert.Equal(t, "dash/i3", msgs[0].Topic)
	assert.True(t, msgs[0].Retain)
	assert.Equal(t, "dash/snapshots", msgs[1].Topic)

	var got Snapshot
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, s, got)

	var combined struct {
		Initiatives []Snapshot `json:"initiatives"`
	}
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &combined))
	assert.Len(t, combined.Initiatives, 1)

	latest, ok := p.Latest("i3")
	assert.True(t, ok)
	assert.Equal(t, 30, latest.Labels)
}

func TestSnapshotPublisher_AllSortedByCode(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	p := NewSnapshotPublisher(client, "dash")

	for _, code := range []string{"i9", "i1", "i4"} {
		require.NoError(t, p.PublishSnapshot(Snapshot{Code: code}))
	}
	all := p.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"i1", "i4", "i9"}, []string{all[0].Code, all[1].Code, all[2].Code})
}

func TestSnapshotPublisher_PublishError(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	client.SetPublishError(errors.New("broker full"))

	err := NewSnapshotPublisher(client, "dash").PublishSnapshot(Snapshot{Code: "i1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dash/i1")
}

func TestSnapshotPublisher_PublishTimeout(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	client.SetPublishStall(true)

	p := NewSnapshotPublisher(client, "dash")
	p.timeout = 10 * time.Millisecond
	err := p.PublishSnapshot(Snapshot{Code: "i1"})
	require.Error(t, err, "an unacknowledged publish is a failure")
	assert.Contains(t, err.Error(), "timed out")
}

func TestSnapshotPublisher_ConfigureReachesClient(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)

	p := NewSnapshotPublisher(client, "dash")
	p.Configure(MQTTConfig{QoS: 1, Retain: false})
	require.NoError(t, p.PublishSnapshot(Snapshot{Code: "i1"}))

	msgs := client.Published()
	require.NotEmpty(t, msgs)
	assert.Equal(t, byte(1), msgs[0].QoS)
	assert.False(t, msgs[0].Retain)
}

func TestSnapshotPublisher_SetQoSAndRetain(t *testing.T) {
	p := NewSnapshotPublisher(nil, "")
	p.SetQoS(1)
	assert.Equal(t, byte(1), p.qos)
	p.SetQoS(7)
	assert.Equal(t, byte(1), p.qos, "invalid QoS is ignored")
	p.SetRetain(false)
	assert.False(t, p.retain)
}

func TestNewSnapshot(t *testing.T) {
	regions := gridRegions(3)
	opts := DefaultJoinOptions()
	opts.ExpectedRows = 3
	attrs := attributesFor(keysOf(regions)[:2], "i2", constValue("1"))
	ds, warning, err := Join(regions, attrs, "i2", opts)
	require.NoError(t, err)

	res := &Result{
		Initiative: Initiative{Code: "i2"},
		Dataset:    ds,
		Placement:  PlaceLabels(ds, DefaultMinSeparation),
		Warning:    warning,
	}
	s := NewSnapshot(res)
	assert.Equal(t, "i2", s.Code)
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, []string{"03/S03"}, s.Missing)
	assert.Equal(t, 2, s.Labels)
	assert.NotZero(t, s.Timestamp)
}
