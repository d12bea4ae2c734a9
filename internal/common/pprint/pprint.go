package pprint

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	SuccessColor = color.New(color.FgGreen)
	InfoColor    = color.New(color.FgBlue)
	WarnColor    = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)

	SuccessPrefix = SuccessColor.Sprintf("[+]")
	InfoPrefix    = InfoColor.Sprintf("[i]")
	WarnPrefix    = WarnColor.Sprintf("[*]")
	ErrorPrefix   = ErrorColor.Sprintf("[-]")
)

func Error(format string, a ...any) string {
	return ErrorPrefix + " " + fmt.Sprintf(format, a...)
}

func Warn(format string, a ...any) string {
	return WarnPrefix + " " + fmt.Sprintf(format, a...)
}

func Info(format string, a ...any) string {
	return InfoPrefix + " " + fmt.Sprintf(format, a...)
}

func Success(format string, a ...any) string {
	return SuccessPrefix + " " + fmt.Sprintf(format, a...)
}

func Table(headers []string, rows [][]string) string {
	t := table.NewWriter()

	headerRow := make(table.Row, len(headers))
	for i, h := range headers {
		headerRow[i] = InfoColor.Sprint(h)
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tableRow := make(table.Row, len(row))
		for i, cell := range row {
			tableRow[i] = truncateString(cell, 48)
		}
		t.AppendRow(tableRow)
	}

	t.SetStyle(table.StyleLight)
	return t.Render()
}

// KeyValue renders a two column table without a header row
func KeyValue(pairs [][2]string) string {
	t := table.NewWriter()
	for _, p := range pairs {
		t.AppendRow(table.Row{InfoColor.Sprint(p[0]), p[1]})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
