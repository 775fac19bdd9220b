// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docextract

import (
	"fmt"
	"strconv"

	"github.com/jeranaias/llumdocs/internal/util"
)

type legendFunc func(rec Record) []string

var legends = map[string]legendFunc{
	"deliverynote": deliveryNoteLegend,
	"bank":         bankLegend,
	"payroll":      payrollLegend,
}

// Legend renders a short human summary of an extracted record. Unknown
// types render nothing.
func Legend(docType string, rec Record) []string {
	fn, ok := legends[docType]
	if !ok {
		return nil
	}
	return fn(rec)
}

func deliveryNoteLegend(rec Record) []string {
	currency := rec.StringOr("moneda", "EUR")
	lines := []string{
		"Delivery Note: " + rec.String("numero_albaran"),
		"Fecha: " + rec.String("fecha_albaran"),
		"Empresa: " + rec.String("nombre_empresa"),
	}
	if nif := rec.String("nif_cif"); nif != "" {
		lines = append(lines, "NIF/CIF: "+nif)
	}
	if products := rec.List("productos"); len(products) > 0 {
		lines = append(lines, "", "Productos:")
		for i, p := range firstN(products, 5) {
			qty := "?"
			if n, ok := p.Number("cantidad"); ok && n != 0 {
				qty = strconv.FormatFloat(n, 'g', -1, 64)
			}
			lines = append(lines, fmt.Sprintf("  %d. %s (%s %s)", i+1, p.String("producto"), qty, p.String("unidad")))
		}
	}
	lines = append(lines, "")
	if base, ok := rec.Number("base_imponible"); ok {
		lines = append(lines, fmt.Sprintf("Base: %.2f %s", base, currency))
	}
	if tax, ok := rec.Number("importe_impuestos"); ok && tax != 0 {
		lines = append(lines, fmt.Sprintf("IVA: %.2f", tax))
	}
	if total, ok := rec.Number("total_albaran"); ok {
		lines = append(lines, fmt.Sprintf("Total: %.2f %s", total, currency))
	}
	return lines
}

func bankLegend(rec Record) []string {
	currency := rec.StringOr("moneda", "EUR")
	var lines []string
	if v := rec.String("banco"); v != "" {
		lines = append(lines, "Banco: "+v)
	}
	if v := rec.String("titular"); v != "" {
		lines = append(lines, "Titular: "+v)
	}
	if v := rec.String("iban"); v != "" {
		lines = append(lines, "IBAN: "+v)
	}
	from, to := rec.String("periodo_desde"), rec.String("periodo_hasta")
	if from != "" && to != "" {
		lines = append(lines, fmt.Sprintf("Período: %s a %s", from, to))
	}
	if v, ok := rec.Number("saldo_inicial"); ok {
		lines = append(lines, fmt.Sprintf("Saldo inicial: %.2f %s", v, currency))
	}
	if txs := rec.List("lineas"); len(txs) > 0 {
		lines = append(lines, "", "Transacciones:")
		for i, tx := range firstN(txs, 10) {
			amount, _ := tx.Number("importe")
			sign := ""
			if amount >= 0 {
				sign = "+"
			}
			lines = append(lines, fmt.Sprintf("  %d. %s: %s%.2f - %s", i+1, tx.String("fecha"), sign, amount,
				util.TruncateRunesNoEllipsis(tx.String("concepto"), 40)))
		}
	}
	if v, ok := rec.Number("saldo_final"); ok {
		lines = append(lines, "", fmt.Sprintf("Saldo final: %.2f %s", v, currency))
	}
	return lines
}

func payrollLegend(rec Record) []string {
	var lines []string
	for _, f := range []struct{ key, label string }{
		{"empresa_nif", "Empresa NIF"},
		{"empleado_dni", "Empleado DNI"},
		{"periodo", "Período"},
		{"categoria", "Categoría"},
		{"iban", "IBAN"},
	} {
		if v := rec.String(f.key); v != "" {
			lines = append(lines, f.label+": "+v)
		}
	}
	for _, section := range []struct{ key, title string }{
		{"devengos", "Devengos:"},
		{"deducciones", "Deducciones:"},
	} {
		items := rec.List(section.key)
		if len(items) == 0 {
			continue
		}
		lines = append(lines, "", section.title)
		for i, item := range firstN(items, 5) {
			amount, _ := item.Number("importe")
			lines = append(lines, fmt.Sprintf("  %d. %s: %.2f EUR", i+1, item.String("concepto"), amount))
		}
	}
	lines = append(lines, "")
	for _, f := range []struct{ key, label string }{
		{"bruto", "Bruto"},
		{"total_deducciones", "Total deducciones"},
		{"neto", "Neto"},
	} {
		if v, ok := rec.Number(f.key); ok {
			lines = append(lines, fmt.Sprintf("%s: %.2f EUR", f.label, v))
		}
	}
	return lines
}

func firstN(recs []Record, n int) []Record {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}
