package model

// Setting is a row of the `settings` key/value table.
//
// Fields:
//  Key   – unique setting name (e.g. open_time).
//  Value – raw stored value; interpretation is up to the reader.
type Setting struct {
    Key   string // settings.setting_key
    Value string // settings.setting_value
}

// SettingOpenTime holds the instant before which public bookings are
// rejected.  An empty value disables the gate.
const SettingOpenTime = "open_time"
