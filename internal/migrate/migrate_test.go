package migrate

import (
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "two statements",
			src:  "create table a(id text);\ncreate table b(id text);",
			want: []string{"create table a(id text)", "create table b(id text)"},
		},
		{
			name: "semicolon inside string literal",
			src:  "insert into t(v) values('a;b');",
			want: []string{"insert into t(v) values('a;b')"},
		},
		{
			name: "semicolon inside line comment",
			src:  "-- note; still the same statement\ninsert into t(v) values('x');",
			want: []string{"-- note; still the same statement\ninsert into t(v) values('x')"},
		},
		{
			name: "trailing statement without semicolon",
			src:  "delete from t",
			want: []string{"delete from t"},
		},
		{
			name: "blank input",
			src:  "  \n ",
			want: nil,
		},
	}
	for _, tc := range cases {
		if got := splitStatements(tc.src); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: splitStatements = %#v, want %#v", tc.name, got, tc.want)
		}
	}
}
