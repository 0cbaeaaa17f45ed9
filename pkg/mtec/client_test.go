package mtec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtecbridge/mtecbridge/pkg/types"
)

func writeEnvelope(w http.ResponseWriter, code string, data interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code": code,
		"msg":  "",
		"data": data,
	})
}

// fakePortal answers logins with tok-1, tok-2, ... and hands every other path
// to routes.
type fakePortal struct {
	logins atomic.Int32
	routes map[string]http.HandlerFunc
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/" + loginPath, "/" + demoLoginPath:
		n := p.logins.Add(1)
		writeEnvelope(w, codeSuccess, map[string]interface{}{"token": fmt.Sprintf("tok-%d", n)})
		return
	}
	if h, ok := p.routes[r.URL.Path]; ok {
		h(w, r)
		return
	}
	http.Error(w, "not found: "+r.URL.Path, http.StatusNotFound)
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(Options{
		BaseURL:  ts.URL,
		Email:    "user@example.com",
		Password: "secret",
	})
}

func TestLogin(t *testing.T) {
	t.Run("Credentials", func(t *testing.T) {
		var body map[string]interface{}
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/login/manager", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Contains(t, r.Header.Get("User-Agent"), "mtecbridge/")
			assert.Equal(t, "pc", r.Header.Get("ver"))
			assert.Empty(t, r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeEnvelope(w, codeSuccess, map[string]interface{}{"token": "fake-token-123"})
		}))

		require.NoError(t, c.Login(context.Background()))
		assert.Equal(t, "fake-token-123", c.token)
		assert.Equal(t, "user@example.com", body["email"])
		assert.EqualValues(t, 1, body["channel"])
		assert.Equal(t, "5ebe2294ecd0e0f08eab7690d2a6ee69", body["salt"])
		assert.Equal(t, "NWViZTIyOTRlY2QwZTBmMDhlYWI3NjkwZDJhNmVlNjk=", body["password"])
	})

	t.Run("Demo", func(t *testing.T) {
		var body map[string]interface{}
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/login/demoManager", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeEnvelope(w, codeSuccess, map[string]interface{}{"token": "demo-token"})
		}))
		defer ts.Close()

		c := New(Options{BaseURL: ts.URL})
		require.NoError(t, c.Login(context.Background()))
		assert.Equal(t, "demo-token", c.token)
		assert.Equal(t, DefaultDemoAccount, body["email"])
		assert.NotContains(t, body, "password")

		c = New(Options{BaseURL: ts.URL, DemoAccount: "other@example.com"})
		require.NoError(t, c.Login(context.Background()))
		assert.Equal(t, "other@example.com", body["email"])
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		c := New(Options{BaseURL: "http://127.0.0.1:1", Email: "user@example.com"})
		assert.ErrorContains(t, c.Login(context.Background()), "missing password")
	})

	t.Run("Rejected", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			writeEnvelope(w, "1000004", nil)
		}))

		err := c.Login(context.Background())
		require.Error(t, err)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "1000004", apiErr.Code)
		assert.Empty(t, c.token)
		// logins are never retried
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("EmptyToken", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, codeSuccess, map[string]interface{}{})
		}))
		assert.ErrorContains(t, c.Login(context.Background()), "empty token")
	})
}

func TestRelogin(t *testing.T) {
	overview := map[string]interface{}{
		"top10List": []map[string]interface{}{{"stationId": "1", "stationName": "Home"}},
	}

	t.Run("ExpiredCode", func(t *testing.T) {
		var calls atomic.Int32
		p := &fakePortal{routes: map[string]http.HandlerFunc{
			"/" + overviewPath: func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, "0.32", r.URL.Query().Get("income"))
				if r.Header.Get("Authorization") == "tok-1" {
					assert.Equal(t, "token=tok-1", r.Header.Get("Cookie"))
					writeEnvelope(w, "1000004", nil)
					return
				}
				assert.Equal(t, "tok-2", r.Header.Get("Authorization"))
				assert.Equal(t, "token=tok-2", r.Header.Get("Cookie"))
				writeEnvelope(w, codeSuccess, overview)
			},
		}}
		c := newTestClient(t, p)

		raw, err := c.QueryBaseInfo(context.Background())
		require.NoError(t, err)
		assert.Contains(t, string(raw), "Home")
		assert.EqualValues(t, 2, p.logins.Load())
		assert.EqualValues(t, 2, calls.Load())
		assert.Equal(t, "tok-2", c.token)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		p := &fakePortal{routes: map[string]http.HandlerFunc{
			"/" + overviewPath: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") == "tok-1" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				writeEnvelope(w, codeSuccess, overview)
			},
		}}
		c := newTestClient(t, p)

		_, err := c.QueryBaseInfo(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 2, p.logins.Load())
	})

	t.Run("ExpiredTwice", func(t *testing.T) {
		var calls atomic.Int32
		p := &fakePortal{routes: map[string]http.HandlerFunc{
			"/" + overviewPath: func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeEnvelope(w, "1100002", nil)
			},
		}}
		c := newTestClient(t, p)

		_, err := c.QueryBaseInfo(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.EqualValues(t, 2, p.logins.Load())
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("OtherErrorNotRetried", func(t *testing.T) {
		var calls atomic.Int32
		p := &fakePortal{routes: map[string]http.HandlerFunc{
			"/" + overviewPath: func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			},
		}}
		c := newTestClient(t, p)

		_, err := c.QueryBaseInfo(context.Background())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.NotErrorIs(t, err, ErrTokenExpired)
		assert.EqualValues(t, 1, p.logins.Load())
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("PostReplayed", func(t *testing.T) {
		var bodies []string
		p := &fakePortal{routes: map[string]http.HandlerFunc{
			"/echo": func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				bodies = append(bodies, body["value"])
				if len(bodies) == 1 {
					writeEnvelope(w, "1000003", nil)
					return
				}
				writeEnvelope(w, codeSuccess, nil)
			},
		}}
		c := newTestClient(t, p)

		ctx := context.Background()
		c.mu.Lock()
		require.NoError(t, c.ensureLogin(ctx))
		err := c.do(ctx, http.MethodPost, "echo", nil, map[string]string{"value": "x"}, nil)
		c.mu.Unlock()
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "x"}, bodies)
	})
}

func TestLoadTopology(t *testing.T) {
	names := []string{"Home", "Garage"}
	var deviceCalls atomic.Int32
	p := &fakePortal{routes: map[string]http.HandlerFunc{
		"/" + overviewPath: func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, codeSuccess, map[string]interface{}{
				"top10List": []map[string]interface{}{
					{"stationId": 1001, "stationName": names[0]},
					{"stationId": "1002", "stationName": names[1]},
				},
			})
		},
		"/" + deviceListPath: func(w http.ResponseWriter, r *http.Request) {
			deviceCalls.Add(1)
			id := r.URL.Query().Get("stationId")
			writeEnvelope(w, codeSuccess, []map[string]interface{}{
				{
					"deviceId":   "d" + id,
					"deviceName": "Inverter " + id,
					"deviceSn":   "SN" + id,
					"deviceType": 1,
					"modelType":  "GEN3 10K-DH",
				},
			})
		},
	}}
	c := newTestClient(t, p)
	ctx := context.Background()

	require.NoError(t, c.LoadTopology(ctx))

	stations := c.Stations()
	require.Len(t, stations, 2)
	assert.Equal(t, "1001", stations[0].ID)
	assert.Equal(t, "Home", stations[0].Name)
	assert.Equal(t, "1002", stations[1].ID)

	devices := c.Devices("1001")
	require.Len(t, devices, 1)
	assert.Equal(t, types.Device{
		ID:           "d1001",
		Name:         "Inverter 1001",
		SerialNumber: "SN1001",
		DeviceType:   "1",
		ModelType:    "GEN3 10K-DH",
	}, devices[0])
	assert.Nil(t, c.Devices("nope"))

	s, err := c.StationByName("Garage")
	require.NoError(t, err)
	assert.Equal(t, "1002", s.ID)
	_, err = c.StationByName("Cabin")
	assert.ErrorIs(t, err, ErrUnknownStation)

	// stations are cached once, later overviews don't replace them
	names[0] = "Renamed"
	require.NoError(t, c.LoadTopology(ctx))
	assert.Equal(t, "Home", c.Stations()[0].Name)
	assert.EqualValues(t, 4, deviceCalls.Load())
	assert.EqualValues(t, 1, p.logins.Load())

	// the returned topology is a copy
	topo := c.Topology()
	topo.Stations[0].Name = "Changed"
	assert.Equal(t, "Home", c.Stations()[0].Name)
}

func TestQueryStationData(t *testing.T) {
	p := &fakePortal{routes: map[string]http.HandlerFunc{
		"/" + overviewPath: func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, codeSuccess, map[string]interface{}{
				"top10List": []map[string]interface{}{{"stationId": "1001", "stationName": "Home"}},
			})
		},
		"/" + deviceListPath: func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, codeSuccess, []interface{}{})
		},
		"/" + stationDataPath: func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.URL.Query().Get("id"))
			writeEnvelope(w, codeSuccess, map[string]interface{}{
				"stationRunStatus": 1,
				"stationRunType":   "2",
				"lackMaster":       false,
				"accumulatedData": map[string]interface{}{
					"todayEnergy":      "12.5",
					"todayEnergyUnit":  "kWh",
					"monthEneregy":     310.2,
					"monthEneregyUnit": "kWh",
					"yearEnergy":       "3.1",
					"yearEnergyUnit":   "MWh",
					"totalEnergy":      "--",
					"totalEnergyUnit":  "MWh",
				},
				"dataNodeMap": map[string]interface{}{
					"inputNode":   map[string]interface{}{"currentData": "4.2", "currentDataUnit": "kW", "flowDirection": 1},
					"loadNode":    map[string]interface{}{"currentData": 850, "currentDataUnit": "W", "flowDirection": 1},
					"batteryNode": map[string]interface{}{"currentData": "1.1", "currentDataUnit": "kW", "flowDirection": 2, "otherData": "87"},
					"meterNode":   map[string]interface{}{"currentData": "2.25", "currentDataUnit": "kW", "flowDirection": "2"},
				},
			})
		},
	}}
	c := newTestClient(t, p)
	ctx := context.Background()
	require.NoError(t, c.LoadTopology(ctx))

	data, err := c.QueryStationData(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "Home", data.StationName)
	assert.Equal(t, 1, data.RunStatus)
	assert.Equal(t, 2, data.RunType)
	assert.False(t, data.LackMaster)
	assert.Equal(t, types.Reading{Value: 12.5, Unit: "kWh"}, data.TodayEnergy)
	assert.Equal(t, types.Reading{Value: 310.2, Unit: "kWh"}, data.MonthEnergy)
	assert.Equal(t, types.Reading{Value: 3.1, Unit: "MWh"}, data.YearEnergy)
	assert.Equal(t, types.Reading{Value: 0, Unit: "MWh"}, data.TotalEnergy)
	assert.Equal(t, types.FlowReading{Reading: types.Reading{Value: 4.2, Unit: "kW"}, Direction: types.FlowObtain}, data.PV)
	assert.Equal(t, 850.0, data.Load.Value)
	assert.Equal(t, types.FlowFeedIn, data.Battery.Direction)
	assert.Equal(t, types.FlowFeedIn, data.Grid.Direction)
	assert.Equal(t, 2.25, data.Grid.Value)
	assert.Equal(t, 87.0, data.BatterySOC)

	// unknown stations are still queried, they just have no name
	data, err = c.QueryStationData(ctx, "1001x")
	require.NoError(t, err)
	assert.Empty(t, data.StationName)
}

func TestQueryDeviceData(t *testing.T) {
	p := &fakePortal{routes: map[string]http.HandlerFunc{
		"/" + deviceDataPath: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "d1", r.URL.Query().Get("id"))
			writeEnvelope(w, codeSuccess, map[string]interface{}{
				"battery": map[string]interface{}{
					"Battery_P": map[string]interface{}{"value": "-1.5", "unit": "kW"},
					"Battery_V": map[string]interface{}{"value": 52.1, "unit": "V"},
					"Battery_I": map[string]interface{}{"value": "-28.8", "unit": "A"},
					"SOC":       map[string]interface{}{"value": "64", "unit": "%"},
				},
				"grid": map[string]interface{}{
					"Invt_A_P":     map[string]interface{}{"value": "1.2", "unit": "kW"},
					"Vgrid_PhaseA": map[string]interface{}{"value": "230.1", "unit": "V"},
					"Igrid_PhaseA": map[string]interface{}{"value": "5.2", "unit": "A"},
					"PmeterPhaseA": map[string]interface{}{"value": "0.3", "unit": "kW"},
					"Invt_C_P":     map[string]interface{}{"value": "0.9", "unit": "kW"},
				},
				"PV": []map[string]interface{}{
					{
						"name":    map[string]interface{}{"value": "PV1"},
						"power":   map[string]interface{}{"value": "2.4", "unit": "kW"},
						"voltage": map[string]interface{}{"value": "380", "unit": "V"},
						"current": map[string]interface{}{"value": "6.3", "unit": "A"},
					},
				},
			})
		},
	}}
	c := newTestClient(t, p)

	data, err := c.QueryDeviceData(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", data.DeviceID)
	assert.Equal(t, types.Reading{Value: -1.5, Unit: "kW"}, data.BatteryPower)
	assert.Equal(t, types.Reading{Value: 52.1, Unit: "V"}, data.BatteryVoltage)
	assert.Equal(t, types.Reading{Value: 64, Unit: "%"}, data.BatterySOC)
	assert.Equal(t, types.PhaseData{
		InverterPower: types.Reading{Value: 1.2, Unit: "kW"},
		Voltage:       types.Reading{Value: 230.1, Unit: "V"},
		Current:       types.Reading{Value: 5.2, Unit: "A"},
		MeterPower:    types.Reading{Value: 0.3, Unit: "kW"},
	}, data.PhaseA)
	assert.Equal(t, 0.9, data.PhaseC.InverterPower.Value)
	assert.Zero(t, data.PhaseB.Voltage.Value)
	require.Len(t, data.PV, 1)
	assert.Equal(t, "PV1", data.PV[0].Name)
	assert.Equal(t, types.Reading{Value: 2.4, Unit: "kW"}, data.PV[0].Power)
}

func TestQueryUsageData(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	p := &fakePortal{routes: map[string]http.HandlerFunc{
		"/" + usageDataPath: func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "1001", q.Get("id"))
			assert.Equal(t, "2024-03-15", q.Get("date"))
			switch q.Get("type") {
			case "day":
				writeEnvelope(w, codeSuccess, []map[string]interface{}{
					{"ts": "2024-03-15 12:00", "load": 0.8, "grid": "-1.2", "PV": "3.5", "battery": 1.5, "SOC": 55},
				})
			case "month":
				writeEnvelope(w, codeSuccess, []map[string]interface{}{
					{"date": "2024-03-01", "load": 10.5, "pv_production": 20.25, "battery_load": 4, "battery_feed": 3.5, "grid_load": 1, "grid_feed": 8.75},
				})
			default:
				writeEnvelope(w, "2000001", nil)
			}
		},
	}}
	c := newTestClient(t, p)
	ctx := context.Background()

	day, err := c.QueryUsageData(ctx, "1001", types.UsageDay, date)
	require.NoError(t, err)
	assert.Equal(t, types.UsageDay, day.Period)
	assert.Empty(t, day.Summaries)
	require.Len(t, day.Samples, 1)
	assert.Equal(t, types.PowerSample{Timestamp: "2024-03-15 12:00", Load: 0.8, Grid: -1.2, PV: 3.5, Battery: 1.5, SOC: 55}, day.Samples[0])

	month, err := c.QueryUsageData(ctx, "1001", types.UsageMonth, date)
	require.NoError(t, err)
	assert.Empty(t, month.Samples)
	require.Len(t, month.Summaries, 1)
	assert.Equal(t, types.EnergySummary{
		Date:             "2024-03-01",
		Load:             10.5,
		PVProduction:     20.25,
		BatteryCharge:    4,
		BatteryDischarge: 3.5,
		GridImport:       1,
		GridExport:       8.75,
	}, month.Summaries[0])

	_, err = c.QueryUsageData(ctx, "1001", types.UsageYear, date)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "2000001", apiErr.Code)

	_, err = c.QueryUsageData(ctx, "1001", types.UsagePeriod("week"), date)
	assert.ErrorContains(t, err, "invalid usage period")
}

func TestFlexJSON(t *testing.T) {
	var v struct {
		S  flexString `json:"s"`
		N  flexString `json:"n"`
		F1 flexFloat  `json:"f1"`
		F2 flexFloat  `json:"f2"`
		F3 flexFloat  `json:"f3"`
		I  flexInt    `json:"i"`
		B1 flexBool   `json:"b1"`
		B2 flexBool   `json:"b2"`
		B3 flexBool   `json:"b3"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"abc","n":12345678901,"f1":"1.5","f2":2.5,"f3":"--","i":"3","b1":true,"b2":"1","b3":0}`), &v))
	assert.Equal(t, flexString("abc"), v.S)
	assert.Equal(t, flexString("12345678901"), v.N)
	assert.Equal(t, flexFloat(1.5), v.F1)
	assert.Equal(t, flexFloat(2.5), v.F2)
	assert.Equal(t, flexFloat(0), v.F3)
	assert.Equal(t, flexInt(3), v.I)
	assert.True(t, bool(v.B1))
	assert.True(t, bool(v.B2))
	assert.False(t, bool(v.B3))

	var f flexFloat
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &f))
}

func TestLookupDirection(t *testing.T) {
	assert.Equal(t, "-", LookupDirection(0))
	assert.Equal(t, "obtain", LookupDirection(1))
	assert.Equal(t, "feed in", LookupDirection(2))
	assert.Equal(t, "unknown", LookupDirection(7))
}

func TestAPIError(t *testing.T) {
	assert.Equal(t, "mtec x: status 500", (&APIError{Endpoint: "x", Status: 500}).Error())
	assert.Equal(t, "mtec x: code 2: bad", (&APIError{Endpoint: "x", Status: 200, Code: "2", Message: "bad"}).Error())
	assert.ErrorIs(t, &APIError{Status: 401}, ErrTokenExpired)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", &APIError{Status: 200, Code: "1000003"}), ErrTokenExpired)
	assert.NotErrorIs(t, &APIError{Status: 200, Code: "1"}, ErrTokenExpired)
}
