// Package querystring はキーと値の順序付きの組をURLクエリ文字列に変換する。
//
// 値のパーセントエンコードは行わない。カンマ区切りのauthorなど、
// 呼び出し側で組み立てた値はそのまま出力される。
package querystring

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Param はクエリ文字列の1組のキーと値を表す。
// Value がnilの場合、その位置には空のセグメントが出力される。
type Param struct {
	Key   string
	Value any
}

// Request は順序付きのクエリパラメータ列を表す。
// 出力順は追加順と一致する。
type Request []Param

// Add はパラメータを末尾に追加した列を返す。
func (r Request) Add(key string, value any) Request {
	return append(r, Param{Key: key, Value: value})
}

// Encode はRequestをクエリ文字列に変換する。
func (r Request) Encode() string {
	return Encode(r)
}

// Encode はパラメータ列を "key=value" を "&" で連結したクエリ文字列に変換する。
//
// nilの値は空のセグメントになるが区切りの "&" は残るため、
// a=1, b=nil, c=2 は "a=1&&c=2" になる。
func Encode(params []Param) string {
	segments := make([]string, len(params))
	for i, p := range params {
		v, ok := format(p.Value)
		if !ok {
			continue
		}
		segments[i] = p.Key + "=" + v
	}
	return strings.Join(segments, "&")
}

// format は値を文字列化する。値が無い（nil）場合はfalseを返す。
func format(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return formatFloat(v, 64), true
	case []string:
		if v == nil {
			return "", false
		}
		return strings.Join(v, ","), true
	case fmt.Stringer:
		if isNil(reflect.ValueOf(v)) {
			return "", false
		}
		return v.String(), true
	}

	rv := reflect.ValueOf(value)
	if isNil(rv) {
		return "", false
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return format(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s, _ := format(rv.Index(i).Interface())
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return formatFloat(rv.Float(), 32), true
	case reflect.Float64:
		return formatFloat(rv.Float(), 64), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.String:
		return rv.String(), true
	}
	return fmt.Sprint(value), true
}

// formatFloat はブラウザの数値の文字列化と同じ表記で浮動小数点数を出力する。
// 無限大はInfinity、非数はNaN、負のゼロは0になり、
// 絶対値が1e21以上または1e-6未満の場合は 1e+21、1.5e-7 のような指数表記になる。
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	if abs := math.Abs(f); abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, bitSize)
		mantissa, exp, _ := strings.Cut(s, "e")
		// Goは指数を2桁以上で出力する（1e-07）ため先頭のゼロを落とす
		return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize)
}

func isNil(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
