package solarapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/resident-x/go-fronius/internal/datastore"
	"github.com/rs/zerolog/log"
)

// Store path prefixes used by the power flow unpacker.
const (
	PathSite            = "site"
	PathInverters       = "Inverters"
	PathOhmpilots       = "Smartloads/Ohmpilots"
	PathSecondaryMeters = "SecondaryMeters"
)

// field describes how one power flow field becomes a data point. Units are
// SenML short codes (RFC 8428).
type field struct {
	name string
	unit string
	// percent fields are divided by 100 to become ratios
	percent bool
}

var siteFields = []field{
	{name: "Mode"},
	{name: "BatteryStandby"},
	{name: "BackupMode"},
	{name: "P_Grid", unit: "W"},
	{name: "P_Load", unit: "W"},
	{name: "P_Akku", unit: "W"},
	{name: "P_PV", unit: "W"},
	{name: "rel_SelfConsumption", unit: "/", percent: true},
	{name: "rel_Autonomy", unit: "/", percent: true},
	{name: "Meter_Location"},
	{name: "E_Day", unit: "Wh"},
	{name: "E_Year", unit: "Wh"},
	{name: "E_Total", unit: "Wh"},
}

var inverterFields = []field{
	{name: "DT"},
	{name: "P", unit: "W"},
	{name: "SOC", unit: "/", percent: true},
	{name: "CID"},
	{name: "Battery_Mode"},
	{name: "E_Day", unit: "Wh"},
	{name: "E_Year", unit: "Wh"},
	{name: "E_Total", unit: "Wh"},
}

// Ohmpilots appear from PowerFlowVersion 10.
var ohmpilotFields = []field{
	{name: "P_AC_Total", unit: "W"},
	{name: "State"},
	{name: "Temperature", unit: "Cel"},
}

// Secondary meters appear from PowerFlowVersion 11.
var secondaryMeterFields = []field{
	{name: "P", unit: "W"},
	{name: "MLoc"},
	{name: "Label"},
	{name: "Category"},
}

type object = map[string]interface{}

// UnpackPowerflow flattens the Data object of a GetPowerFlowRealtimeData
// response into data points. Every point carries ts. Fields that are absent
// or null produce no point. Only a Data value that is not a JSON object is
// an error; malformed optional groups are skipped.
func UnpackPowerflow(data json.RawMessage, ts time.Time) ([]datastore.Entry, error) {
	var groups map[string]json.RawMessage
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("undecodable power flow Data: %w", err)
	}
	if groups == nil {
		return nil, fmt.Errorf("undecodable power flow Data: null")
	}

	u := unpacker{t: datastore.EpochSeconds(ts)}

	var site object
	if u.decode("Site", groups["Site"], &site) {
		u.extract(PathSite, site, siteFields)
	}

	var inverters map[string]object
	if u.decode("Inverters", groups["Inverters"], &inverters) {
		for _, id := range sortedKeys(inverters) {
			u.extract(datastore.Join(PathInverters, id), inverters[id], inverterFields)
		}
	}

	var smartloads struct {
		Ohmpilots map[string]object `json:"Ohmpilots"`
	}
	if u.decode("Smartloads", groups["Smartloads"], &smartloads) {
		for _, id := range sortedKeys(smartloads.Ohmpilots) {
			u.extract(datastore.Join(PathOhmpilots, id), smartloads.Ohmpilots[id], ohmpilotFields)
		}
	}

	var meters map[string]object
	if u.decode("SecondaryMeters", groups["SecondaryMeters"], &meters) {
		for _, id := range sortedKeys(meters) {
			u.extract(datastore.Join(PathSecondaryMeters, id), meters[id], secondaryMeterFields)
		}
	}

	return u.entries, nil
}

type unpacker struct {
	t       float64
	entries []datastore.Entry
}

// decode reports whether an optional group is present and well formed.
func (u *unpacker) decode(group string, raw json.RawMessage, v interface{}) bool {
	if isNull(raw) {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn().Err(err).Str("group", group).Msg("skipping undecodable power flow group")
		return false
	}
	return true
}

func (u *unpacker) extract(prefix string, obj object, fields []field) {
	for _, f := range fields {
		value, ok := obj[f.name]
		if !ok || value == nil {
			continue
		}

		if f.percent {
			pct, err := toFloat(value)
			if err != nil {
				log.Warn().Err(err).Str("path", prefix).Str("field", f.name).Msg("skipping non-numeric percentage")
				continue
			}
			value = pct / 100
		}

		u.entries = append(u.entries, datastore.Entry{
			Path:  datastore.Join(prefix, f.name),
			Point: datastore.DataPoint{Value: value, Unit: f.unit, Time: u.t},
		})
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func sortedKeys(m map[string]object) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
