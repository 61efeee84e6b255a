package demangle

import (
	"context"
	"os/exec"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestGCC(t *testing.T) {
	d := NewGCC("simplified")
	for _, tc := range []struct {
		raw      string
		expected string
		category Category
	}{
		{raw: "_ZTV4Base", expected: "Base", category: VTable},
		{raw: "__ZTV4Base", expected: "Base", category: VTable},
		{raw: "@_ZTV4Base", expected: "Base", category: VTable},
		{raw: "_ZTI4Base", expected: "Base", category: TypeInfo},
		{raw: "_ZTS4Base", expected: "Base", category: TypeName},
		{raw: "_ZN3Foo3barEi", expected: "Foo::bar"},
		{raw: "_ZN3Foo3barEv$w$12345", expected: "Foo::bar"},
		{raw: "main", expected: "main"},
		{raw: "_Z!!", expected: "_Z!!"},
		{raw: "$w$", expected: "$w$"},
	} {
		tc := tc
		t.Run(tc.raw, func(t *testing.T) {
			name, c := d.Demangle(tc.raw)
			require.Equal(t, tc.expected, name)
			require.Equal(t, tc.category, c)
		})
	}
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected string
		category Category
	}{
		{"vtable for Base", "Base", VTable},
		{"non-virtual thunk to Derived::foo(int)", "Derived::foo", Thunk},
		{"typeinfo for Base", "Base", TypeInfo},
		{"typeinfo name for Base", "Base", TypeName},
		{"guard variable for Foo::instance", "Foo::instance", GuardVariable},
		{"VTT for Derived", "Derived", VTT},
		{"construction vtable for Base-in-Derived", "Base-in-Derived", ConstructionVTable},
		{"virtual thunk to Derived::foo", "Derived::foo", VirtualThunk},
		{"Foo::bar", "Foo::bar", 0},
		{"operator new", "operator new", 0},
	} {
		name, c := Classify(tc.in)
		require.Equal(t, tc.expected, name, tc.in)
		require.Equal(t, tc.category, c, tc.in)
	}
}

func TestCategorySuffix(t *testing.T) {
	require.Equal(t, "", Category(0).Suffix())
	require.Equal(t, "::{vtable}", VTable.Suffix())
	require.Equal(t, "::{guard_variable}", GuardVariable.Suffix())
	require.Equal(t, "::{virtual thunk}", VirtualThunk.Suffix())
	require.Equal(t, "::{construction vtable}", ConstructionVTable.Suffix())
	// priority order when several bits are set
	require.Equal(t, "::{vtable}", (VTable | Thunk).Suffix())
	require.Equal(t, "::{virtual thunk}", (VirtualThunk | ConstructionVTable).Suffix())
	require.Equal(t, "typeinfo", TypeInfo.String())
	require.Equal(t, "none", Category(0).String())
}

func TestTrimSignature(t *testing.T) {
	for in, expected := range map[string]string{
		"Foo::bar(int, char*)":          "Foo::bar",
		"Foo::bar(int) const":           "Foo::bar",
		"Foo::bar() volatile":           "Foo::bar",
		"Foo::operator()(int)":          "Foo::operator()",
		"Foo::baz(void (*)(int), long)": "Foo::baz",
		"Foo::bar":                      "Foo::bar",
		"unbalanced)":                   "unbalanced)",
		" const":                        " const",
	} {
		require.Equal(t, expected, TrimSignature(in), in)
	}
}

func TestNone(t *testing.T) {
	name, c := None().Demangle("_ZTV4Base")
	require.Equal(t, "_ZTV4Base", name)
	require.Zero(t, c)
}

func TestExternal(t *testing.T) {
	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat is not available")
	}
	e, err := NewExternal(context.Background(), log.NewNopLogger(), path)
	require.NoError(t, err)

	name, c := e.Demangle("Base::virtual-fn-table-ptr")
	require.Equal(t, "Base", name)
	require.Equal(t, VTable, c)

	name, c = e.Demangle("{Sub}Base::virtual-fn-table-ptr")
	require.Equal(t, "Base::Sub", name)
	require.Equal(t, VTable, c)

	name, c = e.Demangle("plain")
	require.Equal(t, "plain", name)
	require.Zero(t, c)

	require.NoError(t, e.Close())
}

func TestExternalBrokenHelperEchoes(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true is not available")
	}
	e, err := NewExternal(context.Background(), log.NewNopLogger(), path)
	require.NoError(t, err)

	name, c := e.Demangle("_ZTV4Base")
	require.Equal(t, "_ZTV4Base", name)
	require.Zero(t, c)
	require.True(t, e.broken)
	_ = e.Close()
}

func TestCache(t *testing.T) {
	calls := 0
	d := Func(func(raw string) (string, Category) {
		calls++
		return NewGCC("simplified").Demangle(raw)
	})
	c, err := NewCache(d, 2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		name, category := c.Demangle("_ZTV4Base")
		require.Equal(t, "Base", name)
		require.Equal(t, VTable, category)
	}
	require.Equal(t, 1, calls)

	c.Demangle("_ZN3Foo3barEi")
	c.Demangle("main")
	require.Equal(t, 2, c.Len())
	require.Equal(t, 3, calls)

	_, err = NewCache(d, 0)
	require.Error(t, err)
}
