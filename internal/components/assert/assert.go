package assert

import "fmt"

func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}

func NonNegative[T ~int | ~int64](name string, value T) {
	if value < 0 {
		panic(fmt.Sprintf("expected %s to be non-negative, got %d", name, value))
	}
}
