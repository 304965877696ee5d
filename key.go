package eventhub

import "reflect"

// Key 为注册表索引键：字面量字符串，或稳定的类型标识。
// 类型键按 reflect.Type 比较（含包路径），同名不同包的类型不会互相覆盖。
type Key struct {
	lit string
	typ reflect.Type
}

// K 构造字面量键。
func K(name string) Key { return Key{lit: name} }

// TypeOf 构造类型键；T 为事件载荷类型或错误类型（错误通常为指针类型）。
func TypeOf[T any]() Key {
	return Key{typ: reflect.TypeOf((*T)(nil)).Elem()}
}

func typeKey(t reflect.Type) Key { return Key{typ: t} }

// IsZero 判断是否为未初始化键。
func (k Key) IsZero() bool { return k.lit == "" && k.typ == nil }

func (k Key) String() string {
	if k.typ != nil {
		return k.typ.String()
	}
	return k.lit
}

// keyOf 解析发射载荷：Key/字符串按字面量路由；其余值按运行时类型取键，
// 且载荷本身前置为首个回调参数（错误载荷同理）。
func keyOf(ev any, args []any) (Key, []any, error) {
	switch v := ev.(type) {
	case nil:
		return Key{}, nil, ErrNilEvent
	case Key:
		if v.IsZero() {
			return Key{}, nil, ErrNilEvent
		}
		return v, args, nil
	case string:
		if v == "" {
			return Key{}, nil, ErrNilEvent
		}
		return K(v), args, nil
	default:
		return typeKey(reflect.TypeOf(ev)), append([]any{ev}, args...), nil
	}
}
