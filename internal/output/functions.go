package output

import "fmt"

// ToolLine renders one external tool's availability for the probe command.
func ToolLine(name string, version *string) string {
	if version == nil {
		return fmt.Sprintf("%s %s %s", FError(StyleSymbols["fail"]), name, FError("not found"))
	}
	return fmt.Sprintf("%s %s %s %s", FSuccess(StyleSymbols["pass"]), name, StyleSymbols["arrow"], FDetail(*version))
}

func PrintTool(name string, version *string) {
	fmt.Println(ToolLine(name, version))
}
