package scanning

import "strings"

// payrollPromptTemplate is shared by every language model backend. The
// receipts are Argentine payslips, so the instructions stay in Spanish.
const payrollPromptTemplate = `Sos un experto en interpretar recibos de sueldo y en corregir nombres mal escritos por el OCR. Analizá el texto y devolvé EXCLUSIVAMENTE un único objeto JSON.

TEXTO DEL RECIBO:
"""
{{TEXT}}
"""

EXTRAÉ, por cada recibo presente en el texto:
1. "nombre": nombre del empleado.
2. "apellido": apellido del empleado.
3. "sueldo": monto total del sueldo, como número (no como texto).

INSTRUCCIONES:
- Extraé solo al empleado o trabajador, nunca al empleador.
- El empleado suele aparecer después de la etiqueta "Apellido y nombre:".
- El OCR puede introducir errores (por ejemplo "Rsm0n Feronandez" en lugar de "Ramon Fernandez"): corregilos. Puede haber nombres y apellidos compuestos.
- Si el texto contiene varios recibos, devolvelos todos en la lista "recibos".
- El sueldo es el neto a cobrar si aparece; si no, usá el bruto.
- Si no hay ningún recibo legible, devolvé una lista vacía.

Formato de salida:
{"recibos": [{"nombre": "...", "apellido": "...", "sueldo": 123456.78}]}

No escribas nada antes ni después del JSON y no uses bloques de código markdown.`

// ocrPrompt is sent together with a page image to vision models used as OCR engines
const ocrPrompt = `Transcribe all text visible in this scanned document page exactly as written, preserving line breaks. Do not summarize, translate, correct or comment. If the page has no text, return an empty response.`

// payrollPrompt builds the extraction prompt for a page's text
func payrollPrompt(pageText string) string {
	return strings.Replace(payrollPromptTemplate, "{{TEXT}}", pageText, 1)
}
