package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var expected = []string{"取引内容", "取引日", "出金金額（円）", "取引先"}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "取引内容,取引日,出金金額（円）,取引先\n支払い,2024-05-01,100,渋谷区\n", ','},
		{"tab", "取引内容\t取引日\t出金金額（円）\t取引先\n支払い\t2024-05-01\t1,200\t渋谷区\n", '\t'},
		{"semicolon", "\uFEFF取引内容;取引日;出金金額（円）;取引先\r\n", ';'},
		{"quoted headers", "\"取引内容\"|\"取引日\"|\"出金金額（円）\"|\"取引先\"\n", '|'},
		{"tab header with commas in names", "取引内容\t取引日\t出金金額（円）\t取引先\tメモ,備考\n", '\t'},
		{"unknown headers fall back to frequency", "a;b;c,d\n", ';'},
		{"empty", "", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter([]byte(tt.data), expected))
		})
	}
}
