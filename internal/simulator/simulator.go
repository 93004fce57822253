// Package simulator serves a simulated Fronius Datamanager Solar API for
// local development and end-to-end tests.
package simulator

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/resident-x/go-fronius/internal/solarapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Status codes used in simulated responses.
const (
	statusOK           = 0
	statusNotSupported = 11
)

// Options configures the simulated installation.
type Options struct {
	// Version is the Solar API the device speaks. V0 devices have no
	// GetAPIVersion endpoint and serve below /solar_api/.
	Version solarapi.APIVersion
	// PeakPower is the PV power at solar noon in W.
	PeakPower float64
	// BaseLoad is the household consumption in W.
	BaseLoad float64
	// LoggerID is reported as the logger UniqueID.
	LoggerID string
	Now      func() time.Time
}

// Simulator generates a plausible power flow from the wall clock.
type Simulator struct {
	opts   Options
	router *mux.Router
	logger zerolog.Logger

	mu       sync.Mutex
	lastPoll time.Time
	eDay     float64
	eTotal   float64
	requests map[string]int
}

// New creates a simulator. Zero options select a V1 device with 8.2 kWp.
func New(opts Options) *Simulator {
	if opts.Version == "" {
		opts.Version = solarapi.V1
	}
	if opts.PeakPower == 0 {
		opts.PeakPower = 8200
	}
	if opts.BaseLoad == 0 {
		opts.BaseLoad = 450
	}
	if opts.LoggerID == "" {
		opts.LoggerID = "240.424242"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Simulator{
		opts:     opts,
		router:   mux.NewRouter(),
		logger:   log.With().Str("component", "simulator").Logger(),
		eTotal:   23456789,
		requests: make(map[string]int),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler of the simulated device.
func (s *Simulator) Handler() http.Handler {
	return s.router
}

// Requests returns how often an endpoint has been requested.
func (s *Simulator) Requests(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[endpoint]
}

// BasePath is where the Solar API endpoints are served.
func (s *Simulator) BasePath() string {
	if s.opts.Version == solarapi.V0 {
		return "/solar_api/"
	}
	return "/solar_api/v1/"
}

func (s *Simulator) setupRoutes() {
	if s.opts.Version == solarapi.V1 {
		s.router.HandleFunc(solarapi.EndpointAPIVersion, s.handleAPIVersion).Methods(http.MethodGet)
	} else {
		// V0 firmware predates the endpoint and answers with a plain 404.
		s.router.Handle(solarapi.EndpointAPIVersion, http.NotFoundHandler())
	}

	api := s.router.PathPrefix(strings.TrimSuffix(s.BasePath(), "/")).Subrouter()
	api.HandleFunc("/"+solarapi.EndpointLoggerInfo, s.handleLoggerInfo).Methods(http.MethodGet)
	api.HandleFunc("/"+solarapi.EndpointActiveDeviceInfo, s.handleActiveDevices).Methods(http.MethodGet)
	api.HandleFunc("/"+solarapi.EndpointInverterInfo, s.handleInverterInfo).Methods(http.MethodGet)
	api.HandleFunc("/"+solarapi.EndpointPowerFlowRealtimeData, s.handlePowerflow).Methods(http.MethodGet)
	api.PathPrefix("/").HandlerFunc(s.handleNotSupported)
}

func (s *Simulator) count(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[endpoint]++
}

func (s *Simulator) handleAPIVersion(w http.ResponseWriter, _ *http.Request) {
	s.count(solarapi.EndpointAPIVersion)
	s.writeJSON(w, map[string]interface{}{
		"APIVersion":         1,
		"BaseURL":            s.BasePath(),
		"CompatibilityRange": "1.6-3",
	})
}

func (s *Simulator) handleLoggerInfo(w http.ResponseWriter, r *http.Request) {
	s.count(solarapi.EndpointLoggerInfo)
	s.writeEnvelope(w, r, statusOK, map[string]interface{}{
		"LoggerInfo": map[string]interface{}{
			"UniqueID":         s.opts.LoggerID,
			"ProductID":        "fronius-datamanager-card",
			"PlatformID":       "wilma",
			"HWVersion":        "2.4D",
			"SWVersion":        "3.14.1-10",
			"TimezoneLocation": "Vienna",
			"TimezoneName":     "CET",
			"UTCOffset":        3600,
			"DefaultLanguage":  "en",
			"DeliveryFactor":   0.08,
			"CashFactor":       0.21,
			"CashCurrency":     "EUR",
			"CO2Factor":        0.53,
			"CO2Unit":          "kg",
		},
	})
}

func (s *Simulator) inverters() map[string]interface{} {
	return map[string]interface{}{
		"1": map[string]interface{}{"DT": 232, "Serial": "28136344"},
	}
}

func (s *Simulator) handleActiveDevices(w http.ResponseWriter, r *http.Request) {
	s.count(solarapi.EndpointActiveDeviceInfo)

	meters := map[string]interface{}{
		"0": map[string]interface{}{"DT": -1, "Serial": "16250041"},
	}

	var data interface{}
	switch r.URL.Query().Get("DeviceClass") {
	case "System", "":
		data = map[string]interface{}{
			"Inverter":      s.inverters(),
			"Meter":         meters,
			"Storage":       map[string]interface{}{},
			"Ohmpilot":      map[string]interface{}{},
			"SensorCard":    map[string]interface{}{},
			"StringControl": map[string]interface{}{},
		}
	case "Inverter":
		data = s.inverters()
	case "Meter":
		data = meters
	default:
		data = map[string]interface{}{}
	}

	s.writeEnvelope(w, r, statusOK, map[string]interface{}{"Data": data})
}

func (s *Simulator) handleInverterInfo(w http.ResponseWriter, r *http.Request) {
	s.count(solarapi.EndpointInverterInfo)
	s.writeEnvelope(w, r, statusOK, map[string]interface{}{
		"Data": map[string]interface{}{
			"1": map[string]interface{}{
				"DT":         232,
				"PVPower":    s.opts.PeakPower,
				"Show":       1,
				"UniqueID":   "28136344",
				"ErrorCode":  0,
				"StatusCode": 7,
				"CustomName": "Simulated &amp; Co",
			},
		},
	})
}

// pvPower follows a half sine between 06:00 and 18:00.
func (s *Simulator) pvPower(now time.Time) float64 {
	hour := float64(now.Hour()) + float64(now.Minute())/60
	if hour < 6 || hour > 18 {
		return 0
	}
	return math.Round(s.opts.PeakPower * math.Sin(math.Pi*(hour-6)/12))
}

func (s *Simulator) handlePowerflow(w http.ResponseWriter, r *http.Request) {
	s.count(solarapi.EndpointPowerFlowRealtimeData)

	now := s.opts.Now()
	pv := s.pvPower(now)
	load := -math.Round(s.opts.BaseLoad * (1 + 0.3*math.Sin(float64(now.Unix())/300)))
	grid := -load - pv

	s.mu.Lock()
	if !s.lastPoll.IsZero() && s.lastPoll.YearDay() != now.YearDay() {
		s.eDay = 0
	}
	if !s.lastPoll.IsZero() {
		energy := pv * now.Sub(s.lastPoll).Hours()
		s.eDay += energy
		s.eTotal += energy
	}
	s.lastPoll = now
	eDay, eTotal := math.Round(s.eDay), math.Round(s.eTotal)
	s.mu.Unlock()

	selfConsumption := interface{}(nil)
	if pv > 0 {
		selfConsumption = math.Round(100 * math.Min(1, -load/pv))
	}
	autonomy := math.Round(100 * math.Min(1, pv/-load))

	var pvValue interface{}
	if pv > 0 {
		pvValue = pv
	}

	s.writeEnvelope(w, r, statusOK, map[string]interface{}{
		"Data": map[string]interface{}{
			"Site": map[string]interface{}{
				"Mode":                "meter",
				"BatteryStandby":      false,
				"BackupMode":          false,
				"P_Grid":              grid,
				"P_Load":              load,
				"P_Akku":              nil,
				"P_PV":                pvValue,
				"rel_SelfConsumption": selfConsumption,
				"rel_Autonomy":        autonomy,
				"Meter_Location":      "grid",
				"E_Day":               eDay,
				"E_Year":              eTotal / 10,
				"E_Total":             eTotal,
			},
			"Inverters": map[string]interface{}{
				"1": map[string]interface{}{"DT": 232, "P": pv, "E_Day": eDay, "E_Total": eTotal},
			},
			"Version": "12",
		},
	})
}

func (s *Simulator) handleNotSupported(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug().Str("path", r.URL.Path).Msg("Endpoint not simulated")
	s.writeEnvelope(w, r, statusNotSupported, map[string]interface{}{})
}

// writeEnvelope wraps body in the Head/Body envelope of the Solar API.
func (s *Simulator) writeEnvelope(w http.ResponseWriter, r *http.Request, code int, body interface{}) {
	args := make(map[string]string)
	for k := range r.URL.Query() {
		args[k] = r.URL.Query().Get(k)
	}

	s.writeJSON(w, map[string]interface{}{
		"Head": map[string]interface{}{
			"RequestArguments": args,
			"Status":           map[string]interface{}{"Code": code, "Reason": "", "UserMessage": ""},
			"Timestamp":        s.opts.Now().Format(time.RFC3339),
		},
		"Body": body,
	})
}

// writeJSON answers with the content type real devices use.
func (s *Simulator) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "text/javascript")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
