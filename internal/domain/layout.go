package domain

import "regexp"

// Reserved column names written by every record.
const (
	ColumnID         = "id"
	ColumnCapturedAt = "captured_at"
	ColumnDate       = "date"
	ColumnTime       = "time"
	ColumnBatchID    = "batch_id"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidIdentifier reports whether name is safe to use as a SQL column or table name.
func ValidIdentifier(name string) bool { return identRe.MatchString(name) }

// FieldSpec binds a 1-based reading position to a column name.
type FieldSpec struct {
	Position int    `yaml:"position"`
	Name     string `yaml:"name"`
}

// Layout is the fixed position-to-column map of a persisted record.
type Layout struct {
	// BatchPosition is the reading position rounded into the batch id. Zero disables it.
	BatchPosition int         `yaml:"batch_position"`
	Fields        []FieldSpec `yaml:"fields"`
	Flags         []FieldSpec `yaml:"flags"`
}

// IsZero reports whether nothing was configured.
func (l Layout) IsZero() bool {
	return l.BatchPosition == 0 && len(l.Fields) == 0 && len(l.Flags) == 0
}

// Columns lists the layout-defined columns: flags first, then fields.
func (l Layout) Columns() []string {
	cols := make([]string, 0, len(l.Flags)+len(l.Fields))
	for _, f := range l.Flags {
		cols = append(cols, f.Name)
	}
	for _, f := range l.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// Validate checks the layout against the number of decoded values per reading.
func (l Layout) Validate(values int) error {
	if len(l.Fields) == 0 {
		return Configf("record.fields", "at least one field must be mapped")
	}
	if l.BatchPosition < 0 || l.BatchPosition > values {
		return Configf("record.batch_position", "position %d outside 1..%d", l.BatchPosition, values)
	}

	seen := map[string]bool{
		ColumnID:         true,
		ColumnCapturedAt: true,
		ColumnDate:       true,
		ColumnTime:       true,
		ColumnBatchID:    true,
	}
	check := func(section string, specs []FieldSpec) error {
		for _, f := range specs {
			if f.Position < 1 || f.Position > values {
				return Configf(section, "%q position %d outside 1..%d", f.Name, f.Position, values)
			}
			if !ValidIdentifier(f.Name) {
				return Configf(section, "%q is not a valid column name", f.Name)
			}
			if seen[f.Name] {
				return Configf(section, "column %q is reserved or duplicated", f.Name)
			}
			seen[f.Name] = true
		}
		return nil
	}
	if err := check("record.fields", l.Fields); err != nil {
		return err
	}
	return check("record.flags", l.Flags)
}

// DefaultLayout is the register map of the reference plant: 18 values read
// from 36 holding registers.
func DefaultLayout() Layout {
	names := []string{
		"batch_number",
		"motor_speed",
		"motor_current",
		"motor_torque",
		"motor_run_hour",
		"product_temperature",
		"tool_speed",
		"set_time",
		"actual_time",
		"set_tool_rpm",
		"machine_on",
		"drive_trip",
		"pressure_low",
		"motor_ptc",
		"temp_sensor",
		"interval",
		"process_start_signal",
		"process_end_signal",
	}
	fields := make([]FieldSpec, len(names))
	for i, n := range names {
		fields[i] = FieldSpec{Position: i + 1, Name: n}
	}
	return Layout{
		BatchPosition: 1,
		Fields:        fields,
		Flags: []FieldSpec{
			{Position: 17, Name: "process_start"},
			{Position: 18, Name: "process_end"},
			{Position: 12, Name: "drive_trip_alarm"},
			{Position: 13, Name: "pressure_low_alarm"},
			{Position: 14, Name: "motor_ptc_alarm"},
			{Position: 15, Name: "temp_sensor_alarm"},
		},
	}
}
