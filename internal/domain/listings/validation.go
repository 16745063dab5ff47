package listings

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrMissingDevice      = errors.New("brand and model are required")
	ErrInvalidCondition   = errors.New("invalid condition")
	ErrInvalidAskingPrice = errors.New("asking price must be greater than 0")
	ErrInvalidIMEI        = errors.New("one or two valid 15 digit IMEI numbers are required")
	ErrInvalidBattery     = errors.New("battery health must be between 0 and 100")
	ErrInvalidAddress     = errors.New("pickup address line, city and 6 digit pincode are required")
)

// ValidIMEI checks length and the Luhn check digit.
func ValidIMEI(imei string) bool {
	if len(imei) != 15 {
		return false
	}
	sum := 0
	for i, r := range imei {
		if !unicode.IsDigit(r) {
			return false
		}
		d := int(r - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

func validateSubmit(cmd SubmitCommand) error {
	if strings.TrimSpace(cmd.Brand) == "" || strings.TrimSpace(cmd.Model) == "" {
		return ErrMissingDevice
	}
	if !cmd.Condition.Valid() {
		return ErrInvalidCondition
	}
	if cmd.AskingPrice <= 0 {
		return ErrInvalidAskingPrice
	}
	if len(cmd.IMEIs) == 0 || len(cmd.IMEIs) > 2 {
		return ErrInvalidIMEI
	}
	for _, imei := range cmd.IMEIs {
		if !ValidIMEI(imei) {
			return ErrInvalidIMEI
		}
	}
	if cmd.BatteryHealth < 0 || cmd.BatteryHealth > 100 {
		return ErrInvalidBattery
	}
	if strings.TrimSpace(cmd.Pickup.Line) == "" || strings.TrimSpace(cmd.Pickup.City) == "" || !validPincode(cmd.Pickup.Pincode) {
		return ErrInvalidAddress
	}
	return nil
}

func validPincode(p string) bool {
	if len(p) != 6 || p[0] == '0' {
		return false
	}
	for _, r := range p {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
