package modules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var namedLayouts = map[string]string{
	"iso":      time.RFC3339,
	"rfc3339":  time.RFC3339,
	"rfc1123":  time.RFC1123,
	"date":     "2006-01-02",
	"time":     "15:04:05",
	"datetime": "2006-01-02 15:04:05",
	"kitchen":  time.Kitchen,
}

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// DateTimeModules returns the utilities.datetime operations. now supplies the clock.
func DateTimeModules(now func() time.Time) []Descriptor {
	if now == nil {
		now = time.Now
	}
	return []Descriptor{
		Object("utilities.datetime.now", "Current time, optionally in a timezone and layout",
			[]string{"timezone", "format"},
			func(_ context.Context, opts map[string]any) (any, error) {
				t, err := inZone(now(), stringParam(opts, "timezone", ""))
				if err != nil {
					return nil, err
				}
				return t.Format(layout(stringParam(opts, "format", ""))), nil
			}),

		Positional("utilities.datetime.format", "Format a timestamp with a named or Go layout",
			[]string{"date", "format"},
			func(_ context.Context, args []any) (any, error) {
				t, err := parseTime(args[0])
				if err != nil {
					return nil, err
				}
				f, err := toString(args[1])
				if err != nil {
					return nil, fmt.Errorf("format: %w", err)
				}
				return t.Format(layout(f)), nil
			}),

		Positional("utilities.datetime.add", "Add an amount of seconds, minutes, hours, days, weeks, months or years",
			[]string{"date", "amount", "unit"},
			func(_ context.Context, args []any) (any, error) {
				t, err := parseTime(args[0])
				if err != nil {
					return nil, err
				}
				amount, err := toFloat(args[1])
				if err != nil {
					return nil, fmt.Errorf("amount: %w", err)
				}
				unit, err := toString(args[2])
				if err != nil {
					return nil, fmt.Errorf("unit: %w", err)
				}
				out, err := addTime(t, amount, unit)
				if err != nil {
					return nil, err
				}
				return out.Format(time.RFC3339), nil
			}),

		Object("utilities.datetime.next-cron", "Next run time(s) of a cron expression",
			[]string{"expression", "from", "count", "timezone"},
			func(_ context.Context, opts map[string]any) (any, error) {
				expr := stringParam(opts, "expression", "")
				if expr == "" {
					return nil, fmt.Errorf("expression is required")
				}
				sched, err := cronParser.Parse(expr)
				if err != nil {
					return nil, fmt.Errorf("parse cron %q: %w", expr, err)
				}
				from := now()
				if raw, ok := opts["from"]; ok && raw != nil {
					if from, err = parseTime(raw); err != nil {
						return nil, err
					}
				}
				if from, err = inZone(from, stringParam(opts, "timezone", "")); err != nil {
					return nil, err
				}

				count := intParam(opts, "count", 1)
				if count <= 1 {
					return sched.Next(from).Format(time.RFC3339), nil
				}
				times := make([]any, 0, count)
				for i := 0; i < count; i++ {
					from = sched.Next(from)
					times = append(times, from.Format(time.RFC3339))
				}
				return times, nil
			}),
	}
}

func layout(name string) string {
	if name == "" {
		return time.RFC3339
	}
	if l, ok := namedLayouts[strings.ToLower(name)]; ok {
		return l
	}
	return name
}

func inZone(t time.Time, zone string) (time.Time, error) {
	if zone == "" {
		return t.UTC(), nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown timezone %q", zone)
	}
	return t.In(loc), nil
}

// parseTime accepts time.Time, common string layouts, or unix seconds.
func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, l := range parseLayouts {
			if parsed, err := time.Parse(l, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time %q", t)
	case nil:
		return time.Time{}, fmt.Errorf("missing date")
	default:
		secs, err := toFloat(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse time from %T", v)
		}
		return time.Unix(0, int64(secs*float64(time.Second))).UTC(), nil
	}
}

func addTime(t time.Time, amount float64, unit string) (time.Time, error) {
	n := int(amount)
	switch strings.TrimSuffix(strings.ToLower(unit), "s") {
	case "second":
		return t.Add(time.Duration(amount * float64(time.Second))), nil
	case "minute":
		return t.Add(time.Duration(amount * float64(time.Minute))), nil
	case "hour":
		return t.Add(time.Duration(amount * float64(time.Hour))), nil
	case "day":
		return t.AddDate(0, 0, n), nil
	case "week":
		return t.AddDate(0, 0, 7*n), nil
	case "month":
		return t.AddDate(0, n, 0), nil
	case "year":
		return t.AddDate(n, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported unit %q", unit)
	}
}
