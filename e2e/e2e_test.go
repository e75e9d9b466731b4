//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/dutysched/app"
	"github.com/kilianp07/dutysched/config"
	"github.com/kilianp07/dutysched/core/assign"
	"github.com/kilianp07/dutysched/core/factory"
	"github.com/kilianp07/dutysched/core/model"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
	apiToken     = "e2e"
)

// junitReport lets CI display the suite results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container already set up with the
// e2e organisation, bucket and admin token.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:1.6",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// Test_E2E_DutyLifecycle runs the service against real InfluxDB and
// Mosquitto containers, walks one unlinked duty through its lifecycle over
// HTTP and checks every transition reached both the broker and the bucket.
func Test_E2E_DutyLifecycle(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxCont, influxURL := startInflux(ctx, t)
	defer influxCont.Terminate(context.Background()) //nolint:errcheck
	mqttCont, brokerURL := startMosquitto(ctx, t)
	defer mqttCont.Terminate(context.Background()) //nolint:errcheck
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", brokerURL)

	influx := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer influx.Close()
	require.NoError(t, influx.SetupBucket(ctx))

	sub := paho.NewClient(paho.NewClientOptions().AddBroker(brokerURL).SetClientID("e2e-sub"))
	if tok := sub.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("connect subscriber: %v", tok.Error())
	}
	defer sub.Disconnect(100)
	events := make(chan model.TransitionEvent, 16)
	tok := sub.Subscribe("e2e/duties/+/events", 1, func(_ paho.Client, m paho.Message) {
		var ev model.TransitionEvent
		if json.Unmarshal(m.Payload(), &ev) == nil {
			events <- ev
		}
	})
	tok.Wait()
	require.NoError(t, tok.Error())

	cfg := &config.Config{}
	cfg.HTTP.Auth.Token = apiToken
	cfg.MQTT.Enabled = true
	cfg.MQTT.Broker = brokerURL
	cfg.MQTT.TopicPrefix = "e2e"
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket,
	}}}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer svc.Close() //nolint:errcheck
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srvCtx, stop := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() { served <- svc.Serve(srvCtx, ln) }()
	base := "http://" + ln.Addr().String()

	require.Equal(t, http.StatusCreated, post(t, base+"/api/drivers", model.Driver{ID: "D1", Name: "Alice"}).StatusCode)
	require.Equal(t, http.StatusCreated, post(t, base+"/api/vehicles", model.Vehicle{ID: "V1"}).StatusCode)
	window := model.NewWindow(time.Now().UTC().Add(time.Hour), time.Hour)
	resp := post(t, base+"/api/duties/unlinked", assign.UnlinkedDutyRequest{Window: window})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var duty model.Duty
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&duty))

	require.Equal(t, http.StatusOK, post(t, base+"/api/duties/"+duty.ID+"/assign",
		map[string]string{"driver_id": "D1", "vehicle_id": "V1"}).StatusCode)
	require.Equal(t, http.StatusOK, post(t, base+"/api/duties/"+duty.ID+"/start", nil).StatusCode)
	require.Equal(t, http.StatusOK, post(t, base+"/api/duties/"+duty.ID+"/complete", nil).StatusCode)

	want := []string{
		string(model.StateUnassigned), string(model.StateAssigned),
		string(model.StateInProgress), string(model.StateCompleted),
	}
	var seen []string
	deadline := time.After(30 * time.Second)
	for len(seen) < len(want) {
		select {
		case ev := <-events:
			if ev.DutyID == duty.ID {
				seen = append(seen, string(ev.Next))
			}
		case <-deadline:
			t.Fatalf("mqtt: got %v, want %v", seen, want)
		}
	}
	require.Equal(t, want, seen)

	var stored []string
	require.Eventually(t, func() bool {
		states, err := influx.Transitions(ctx, duty.ID)
		if err != nil {
			return false
		}
		stored = states
		return len(states) == len(want)
	}, 30*time.Second, 500*time.Millisecond)
	require.Equal(t, want, stored)

	stop()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{
		Name: "Test_E2E_DutyLifecycle", Time: time.Since(started).Seconds(),
	}}}
	if err := writeJUnit(filepath.Join(t.TempDir(), "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
