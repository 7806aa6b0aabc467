package helper

import (
	"github.com/shopspring/decimal"
)

var HundredDecimal = decimal.NewFromInt(100)

// TrimDecimal decimal 四舍五入到 2 位小数后转字符串
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(2)
}

// ToMinorUnits 主币单位（元/美元）转最小货币单位（分/美分），四舍五入
func ToMinorUnits(major decimal.Decimal) int64 {
	return major.Mul(HundredDecimal).Round(0).IntPart()
}

// FromMinorUnits 最小货币单位转主币单位：minor / 100
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
