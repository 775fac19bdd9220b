// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docextract

import (
	"fmt"
	"math"
)

// Tolerance for the arithmetic consistency checks.
const checkTolerance = 0.05

type checkFunc func(rec Record) []string

var checks = map[string]checkFunc{
	"deliverynote": checkDeliveryNote,
	"bank":         checkBank,
	"payroll":      checkPayroll,
}

// Warnings runs the consistency checks for docType. Checks are advisory:
// a record with warnings is still returned to the caller.
func Warnings(docType string, rec Record) []string {
	fn, ok := checks[docType]
	if !ok {
		return nil
	}
	return fn(rec)
}

func checkPayroll(rec Record) []string {
	gross, ok1 := rec.Number("bruto")
	deductions, ok2 := rec.Number("total_deducciones")
	net, ok3 := rec.Number("neto")
	if !ok1 || !ok2 || !ok3 {
		return nil
	}
	if diff := math.Abs(gross - deductions - net); diff >= checkTolerance {
		return []string{fmt.Sprintf("bruto - total_deducciones != neto (diff %.2f)", diff)}
	}
	return nil
}

func checkDeliveryNote(rec Record) []string {
	base, ok := rec.Number("base_imponible")
	if !ok {
		return nil
	}
	var sum float64
	var counted int
	for _, p := range rec.List("productos") {
		if v, ok := p.Number("importe_linea"); ok {
			sum += v
			counted++
		}
	}
	if counted == 0 {
		return nil
	}
	if diff := math.Abs(sum - base); diff >= checkTolerance {
		return []string{fmt.Sprintf("sum of importe_linea (%.2f) != base_imponible (%.2f)", sum, base)}
	}
	return nil
}

func checkBank(rec Record) []string {
	opening, ok1 := rec.Number("saldo_inicial")
	closing, ok2 := rec.Number("saldo_final")
	txs := rec.List("lineas")
	if !ok1 || !ok2 || len(txs) == 0 {
		return nil
	}
	sum := opening
	for _, tx := range txs {
		v, _ := tx.Number("importe")
		sum += v
	}
	if diff := math.Abs(sum - closing); diff >= checkTolerance {
		return []string{fmt.Sprintf("saldo_inicial + movimientos (%.2f) != saldo_final (%.2f)", sum, closing)}
	}
	return nil
}
