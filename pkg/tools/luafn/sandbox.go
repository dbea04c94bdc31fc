package luafn

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/hexfall/npcmind/pkg/log"
)

// setupSandbox restricts a Lua state to safe libraries. Tool scripts carry
// game content; they get string/table/math but no filesystem or process
// access.
func setupSandbox(L *lua.LState) {
	L.OpenLibs()

	// Explicitly make unsafe modules and functions unavailable
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("package", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)

	// Route print through the logger
	L.SetGlobal("print", L.NewFunction(safePrint))
}

// safePrint implements Lua print on top of the module logger.
func safePrint(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]any, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, lua.LVAsString(L.Get(i)))
	}
	log.Debug("lua print", "args", parts)
	return 0
}
