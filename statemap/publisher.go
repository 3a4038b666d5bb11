package statemap

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Snapshot summarises one successful pipeline run.
type Snapshot struct {
	Code      string   `json:"code"`
	Rows      int      `json:"rows"`
	Missing   []string `json:"missing"`
	Labels    int      `json:"labels"`
	Timestamp int64    `json:"timestamp"`
}

// NewSnapshot summarises res.
func NewSnapshot(res *Result) Snapshot {
	s := Snapshot{
		Code:      res.Initiative.Code,
		Missing:   []string{},
		Labels:    len(res.Placement.Labels),
		Timestamp: time.Now().Unix(),
	}
	if res.Dataset != nil {
		s.Rows = len(res.Dataset.Rows)
	}
	if res.Warning != nil {
		for _, k := range res.Warning.MissingKeys {
			s.Missing = append(s.Missing, k.String())
		}
	}
	return s
}

// SnapshotSink receives run summaries.
type SnapshotSink interface {
	PublishSnapshot(s Snapshot) error
}

// SnapshotPublisher publishes run summaries to MQTT as retained messages.
type SnapshotPublisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	timeout       time.Duration
	latest        map[string]Snapshot
	mu            sync.RWMutex
}

// NewSnapshotPublisher creates a publisher writing under prefix.
func NewSnapshotPublisher(client mqtt.Client, prefix string) *SnapshotPublisher {
	if prefix == "" {
		prefix = "stateboard"
	}
	return &SnapshotPublisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
		timeout:       2 * time.Second,
		latest:        make(map[string]Snapshot),
	}
}

// Configure applies the delivery settings of cfg.
func (p *SnapshotPublisher) Configure(cfg MQTTConfig) {
	p.SetQoS(byte(cfg.QoS))
	p.SetRetain(cfg.Retain)
}

// PublishSnapshot publishes s to <prefix>/<code> and refreshes the combined
// <prefix>/snapshots topic.
func (p *SnapshotPublisher) PublishSnapshot(s Snapshot) error {
	if p.client == nil || !p.client.IsConnected() {
		return eris.New("MQTT client not connected")
	}

	p.mu.Lock()
	p.latest[s.Code] = s
	p.mu.Unlock()

	if err := p.publish(fmt.Sprintf("%s/%s", p.publishPrefix, s.Code), s); err != nil {
		return err
	}
	zap.L().Debug("published snapshot",
		zap.String("component", "mqtt"),
		zap.String("initiative", s.Code),
		zap.Int("missing", len(s.Missing)),
		zap.Int("labels", s.Labels),
	)

	return p.publish(fmt.Sprintf("%s/snapshots", p.publishPrefix), map[string]interface{}{
		"initiatives": p.All(),
		"timestamp":   time.Now().Unix(),
	})
}

func (p *SnapshotPublisher) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "marshaling snapshot")
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return eris.Errorf("publishing to %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return eris.Wrapf(err, "publishing to %s", topic)
	}
	return nil
}

// Latest returns the last snapshot published for code.
func (p *SnapshotPublisher) Latest(code string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.latest[code]
	return s, ok
}

// All returns the latest snapshot of every initiative, ordered by code.
func (p *SnapshotPublisher) All() []Snapshot {
	p.mu.RLock()
	out := make([]Snapshot, 0, len(p.latest))
	for _, s := range p.latest {
		out = append(out, s)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *SnapshotPublisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *SnapshotPublisher) SetRetain(retain bool) {
	p.retain = retain
}
