package ups

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ShipRecon/internal/integrations/carrier"
	"github.com/BearBump/ShipRecon/internal/models"
)

// noTrackingInfoCode is returned for labels the carrier has not scanned yet.
const noTrackingInfoCode = "151044"

var activityStatuses = map[string]string{
	"D":  models.DeliveryStatusDelivered,
	"I":  models.DeliveryStatusInTransit,
	"P":  models.DeliveryStatusInTransit, // picked up
	"M":  models.DeliveryStatusPending,   // manifest only
	"X":  models.DeliveryStatusException,
	"RS": models.DeliveryStatusReturned,
}

// oneOrMany decodes either a JSON object or an array of objects.
// Older response revisions return single objects where newer ones use arrays.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*o = nil
		return nil
	}
	if b[0] == '[' {
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

func (o oneOrMany[T]) first() (T, bool) {
	var zero T
	if len(o) == 0 {
		return zero, false
	}
	return o[0], true
}

// Field names match both casings: encoding/json compares keys case-insensitively.
type trackEnvelope struct {
	TrackResponse *struct {
		Shipment oneOrMany[upsShipment] `json:"shipment"`
	} `json:"trackResponse"`
	Response *struct {
		Errors []upsError `json:"errors"`
	} `json:"response"`
}

type upsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type upsShipment struct {
	ScheduledDeliveryDate string                `json:"scheduledDeliveryDate"`
	Package               oneOrMany[upsPackage] `json:"package"`
}

type upsPackage struct {
	DeliveryDate      json.RawMessage        `json:"deliveryDate"`
	DeliveryIndicator string                 `json:"deliveryIndicator"`
	Activity          oneOrMany[upsActivity] `json:"activity"`
}

type upsDeliveryDate struct {
	Type string `json:"type"`
	Date string `json:"date"`
}

type upsActivity struct {
	Status struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"status"`
	Date string `json:"date"`
	Time string `json:"time"`
}

func hasNoTrackingInfoCode(body []byte) bool {
	var env trackEnvelope
	if json.Unmarshal(body, &env) != nil || env.Response == nil {
		return false
	}
	for _, e := range env.Response.Errors {
		if e.Code == noTrackingInfoCode {
			return true
		}
	}
	return false
}

func parseTrackingResponse(body []byte, trackingNumber string) carrier.TrackingResult {
	res := carrier.TrackingResult{
		TrackingNumber: trackingNumber,
		Status:         carrier.LookupParseError,
		DeliveryStatus: models.DeliveryStatusPending,
	}

	var env trackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return res
	}
	if hasNoTrackingInfoCode(body) {
		res.Status = carrier.LookupNotFound
		return res
	}
	if env.TrackResponse == nil {
		return res
	}
	shipment, ok := env.TrackResponse.Shipment.first()
	if !ok {
		return res
	}

	res.ScheduledDelivery = parseUPSDate(shipment.ScheduledDeliveryDate)

	if pkg, ok := shipment.Package.first(); ok {
		applyDeliveryDates(&res, pkg.DeliveryDate)

		if strings.EqualFold(pkg.DeliveryIndicator, "Y") {
			res.DeliveryStatus = models.DeliveryStatusDelivered
		}

		// Activities are newest first. The latest activity wins over the indicator.
		if act, ok := pkg.Activity.first(); ok {
			res.LastActivity = &carrier.Activity{
				Type:        act.Status.Type,
				Description: act.Status.Description,
				Date:        act.Date,
				Time:        act.Time,
			}
			res.DeliveryStatus = deliveryStatusFor(act.Status.Type)
			if res.DeliveryStatus == models.DeliveryStatusDelivered && res.ActualDelivery == nil {
				res.ActualDelivery = parseUPSDateTime(act.Date, act.Time)
			}
		}
	}

	res.Status = carrier.LookupOK
	return res
}

func deliveryStatusFor(activityType string) string {
	if s, ok := activityStatuses[activityType]; ok {
		return s
	}
	return models.DeliveryStatusInTransit
}

// applyDeliveryDates reads the package delivery date, which is a plain date string in
// one revision and a list of typed dates in the other.
func applyDeliveryDates(res *carrier.TrackingResult, raw json.RawMessage) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return
	}
	var plain string
	if json.Unmarshal(raw, &plain) == nil {
		res.ActualDelivery = parseUPSDate(plain)
		return
	}
	var dates oneOrMany[upsDeliveryDate]
	if json.Unmarshal(raw, &dates) != nil {
		return
	}
	for _, d := range dates {
		switch strings.ToUpper(d.Type) {
		case "SDD", "RDD":
			if res.ScheduledDelivery == nil {
				res.ScheduledDelivery = parseUPSDate(d.Date)
			}
		default:
			if res.ActualDelivery == nil {
				res.ActualDelivery = parseUPSDate(d.Date)
			}
		}
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseUPSDate parses YYYYMMDD (separators ignored) as midnight UTC.
func parseUPSDate(s string) *time.Time {
	return parseUPSDateTime(s, "")
}

// parseUPSDateTime combines YYYYMMDD and HHMMSS into a UTC timestamp.
func parseUPSDateTime(date, clock string) *time.Time {
	d := digitsOnly(date)
	if len(d) < 8 {
		return nil
	}
	year, _ := strconv.Atoi(d[0:4])
	month, _ := strconv.Atoi(d[4:6])
	day, _ := strconv.Atoi(d[6:8])

	var hour, minute, sec int
	if c := digitsOnly(clock); len(c) >= 6 {
		hour, _ = strconv.Atoi(c[0:2])
		minute, _ = strconv.Atoi(c[2:4])
		sec, _ = strconv.Atoi(c[4:6])
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	return &t
}
