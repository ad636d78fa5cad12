package uplc

import "github.com/blinklabs-io/plutigo/data"

// ApplyArguments returns a new Program that applies program's term to each
// of args in order, each wrapped as a Data-typed constant. This is how a
// validator script is fed its datum/redeemer/context (or, in PlutusV3, its
// single ScriptContext argument) before running it through a Machine.
func ApplyArguments(program *Program, args ...data.PlutusData) *Program {
	term := program.Term
	for _, a := range args {
		term = Apply{Function: term, Argument: Const{Value: dataConst(a)}}
	}
	return &Program{Version: program.Version, Term: term}
}
