package netmount

import "time"

// PackTime encodes a local time into the MS-DOS packed date/time format:
// bits 31-25 year-1980, 24-21 month, 20-16 day, 15-11 hour, 10-5 minute,
// 4-0 second/2. The low 16 bits hold the time, the high 16 bits the date,
// matching the wire layout used by drive_proto_get_attrs_reply (time then
// date) and the combined 32-bit date_time field used elsewhere.
func PackTime(t time.Time) uint32 {
	t = t.Local()
	year := uint32(t.Year() - 1980)
	month := uint32(t.Month())
	day := uint32(t.Day())
	hour := uint32(t.Hour())
	minute := uint32(t.Minute())
	second := uint32(t.Second() / 2)

	var res uint32
	res = year
	res = (res << 4) | month
	res = (res << 5) | day
	res = (res << 5) | hour
	res = (res << 6) | minute
	res = (res << 5) | second
	return res
}

// UnpackTime decodes a packed MS-DOS date/time back into a local time.Time,
// with second-resolution rounded down to the nearest even second.
func UnpackTime(packed uint32) time.Time {
	second := int((packed & 0x1F) * 2)
	minute := int((packed >> 5) & 0x3F)
	hour := int((packed >> 11) & 0x1F)
	day := int((packed >> 16) & 0x1F)
	month := int((packed >> 21) & 0x0F)
	year := int((packed>>25)&0x7F) + 1980
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
}

// PackTimeSplit returns (time16, date16) halves, as carried separately on
// the wire by drive_proto_get_attrs_reply and drive_proto_find_reply.
func PackTimeSplit(t time.Time) (timePart, datePart uint16) {
	packed := PackTime(t)
	return uint16(packed), uint16(packed >> 16)
}
