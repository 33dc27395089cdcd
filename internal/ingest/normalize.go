package ingest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// TimezoneFix shifts the wall-clock time of one source's records in one
// region by a fixed number of hours. It reproduces how historical rows
// were repaired: "add N hours mod 24" with a day carry, nothing more.
type TimezoneFix struct {
	Source string
	// Region is compared case-insensitively against the record's region,
	// city and country. Empty matches every record of the source.
	Region string
	Hours  int
}

func (f TimezoneFix) applies(raw *RawRecord) bool {
	if !strings.EqualFold(f.Source, raw.SourceName) {
		return false
	}
	if f.Region == "" {
		return true
	}
	for _, v := range []string{raw.Region, raw.City, raw.Country} {
		if strings.EqualFold(strings.TrimSpace(v), f.Region) {
			return true
		}
	}
	return false
}

// Normalizer turns adapter output into storable records.
type Normalizer struct {
	HomeCountry     string
	DefaultCurrency string
	TimezoneFixes   []TimezoneFix
	// Location interprets Date+Time when building StartAt/EndAt.
	// Defaults to UTC.
	Location *time.Location
}

// Normalize validates and cleans one record of the given kind. It returns
// a *MalformedRecordError when the record has no title, or when an event
// has no date.
func (n *Normalizer) Normalize(kind SourceKind, raw RawRecord) (*Record, error) {
	raw.Title = collapseSpace(raw.Title)
	raw.Date = strings.TrimSpace(raw.Date)
	raw.Time = strings.TrimSpace(raw.Time)
	raw.EndDate = strings.TrimSpace(raw.EndDate)
	raw.EndTime = strings.TrimSpace(raw.EndTime)
	raw.ReleaseDate = strings.TrimSpace(raw.ReleaseDate)
	raw.Currency = strings.ToUpper(strings.TrimSpace(raw.Currency))

	if err := recordValidator().Struct(raw); err != nil {
		return nil, malformedFromValidation(raw, err)
	}
	if kind == KindEvents && raw.Date == "" {
		return nil, &MalformedRecordError{Source: raw.SourceName, SourceID: raw.SourceEventID, Field: "date", Reason: "is required"}
	}

	for _, fix := range n.TimezoneFixes {
		if !fix.applies(&raw) {
			continue
		}
		var err error
		if raw.Date, raw.Time, err = shiftDateTime(raw.Date, raw.Time, fix.Hours); err != nil {
			return nil, &MalformedRecordError{Source: raw.SourceName, SourceID: raw.SourceEventID, Field: "time", Reason: err.Error()}
		}
		if raw.EndDate, raw.EndTime, err = shiftDateTime(raw.EndDate, raw.EndTime, fix.Hours); err != nil {
			return nil, &MalformedRecordError{Source: raw.SourceName, SourceID: raw.SourceEventID, Field: "end_time", Reason: err.Error()}
		}
	}

	rec := &Record{
		Kind:         kind,
		Source:       raw.SourceName,
		SourceID:     strings.TrimSpace(raw.SourceEventID),
		Title:        raw.Title,
		Description:  CleanText(raw.Description),
		Date:         raw.Date,
		Time:         raw.Time,
		VenueName:    collapseSpace(raw.VenueName),
		VenueAddress: collapseSpace(raw.VenueAddress),
		Category:     strings.ToLower(collapseSpace(raw.Category)),
		PriceText:    collapseSpace(raw.PriceText),
		Currency:     raw.Currency,
		Country:      collapseSpace(raw.Country),
		City:         collapseSpace(raw.City),
		ImageURL:     strings.TrimSpace(raw.ImageURL),
		SourceURL:    strings.TrimSpace(raw.SourceURL),
		Synopsis:     CleanText(raw.Synopsis),
		PosterURL:    strings.TrimSpace(raw.PosterURL),
		Rating:       collapseSpace(raw.Rating),
		Genre:        collapseSpace(raw.Genre),
		DurationMins: raw.DurationMins,
		Defaulted:    map[string]bool{},
	}
	if rec.Country == "" && n.HomeCountry != "" {
		rec.Country = n.HomeCountry
		rec.Defaulted[FieldCountry] = true
	}
	if rec.Currency == "" && n.DefaultCurrency != "" {
		rec.Currency = n.DefaultCurrency
		rec.Defaulted[FieldCurrency] = true
	}

	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	if rec.Date != "" && rec.Time != "" {
		start, err := time.ParseInLocation(dateLayout+" "+clockLayout, rec.Date+" "+rec.Time, loc)
		if err == nil {
			rec.StartAt = &start
		}
	}
	if raw.EndTime != "" && rec.StartAt != nil {
		endDate := raw.EndDate
		if endDate == "" {
			endDate = rec.Date
		}
		end, err := time.ParseInLocation(dateLayout+" "+clockLayout, endDate+" "+raw.EndTime, loc)
		if err == nil {
			// an end before the start without an explicit end date runs past midnight
			if end.Before(*rec.StartAt) && raw.EndDate == "" {
				end = end.AddDate(0, 0, 1)
			}
			rec.EndAt = &end
		}
	}
	if raw.ReleaseDate != "" {
		rd, err := time.Parse(dateLayout, raw.ReleaseDate)
		if err == nil {
			rec.ReleaseDate = &rd
		}
	}
	return rec, nil
}

func malformedFromValidation(raw RawRecord, err error) error {
	out := &MalformedRecordError{Source: raw.SourceName, SourceID: raw.SourceEventID, Field: "record", Reason: err.Error()}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		out.Field = strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out.Reason = "is required"
		case "datetime":
			out.Reason = fmt.Sprintf("%q does not match %s", fe.Value(), fe.Param())
		default:
			out.Reason = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return out
}

// AddHours adds hours to an "HH:MM" wall-clock time modulo 24:
// AddHours("23:30", 3) is "02:30".
func AddHours(hhmm string, hours int) (string, error) {
	out, _, err := ShiftClock(hhmm, hours)
	return out, err
}

// ShiftClock is AddHours that also returns the day carry (+1 when the
// result wrapped past midnight, -1 when a negative shift wrapped back).
func ShiftClock(hhmm string, hours int) (string, int, error) {
	t, err := time.Parse(clockLayout, hhmm)
	if err != nil {
		return "", 0, fmt.Errorf("invalid time %q", hhmm)
	}
	minutes := t.Hour()*60 + t.Minute() + hours*60
	days := minutes / (24 * 60)
	minutes %= 24 * 60
	if minutes < 0 {
		minutes += 24 * 60
		days--
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), days, nil
}

// shiftDateTime applies ShiftClock to a time and carries the day into the
// date. Records without a time are left untouched.
func shiftDateTime(date, clock string, hours int) (string, string, error) {
	if clock == "" {
		return date, clock, nil
	}
	shifted, days, err := ShiftClock(clock, hours)
	if err != nil {
		return date, clock, err
	}
	if days != 0 && date != "" {
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return date, clock, fmt.Errorf("invalid date %q", date)
		}
		date = d.AddDate(0, 0, days).Format(dateLayout)
	}
	return date, shifted, nil
}
