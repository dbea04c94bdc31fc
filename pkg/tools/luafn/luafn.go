// Package luafn registers dialogue tool functions written as sandboxed Lua
// scripts, so game content can add NPC tools without recompiling.
//
// A script defines a global table named "tool":
//
//	tool = {
//	    name = "open_shop",
//	    description = "Open the character's shop for the player",
//	    category = "transition",
//	    target = "shop",
//	    parameters = {
//	        type = "object",
//	        properties = {
//	            greeting = { type = "string", description = "parting line" },
//	        },
//	    },
//	    execute = function(args)
//	        return "the shop is now open"
//	    end,
//	}
package luafn

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/tools"
)

// LoadFile compiles one Lua tool script into a tools.Function.
// The returned function owns a dedicated Lua state; concurrent calls are
// serialized internally.
func LoadFile(path string) (tools.Function, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return tools.Function{}, fmt.Errorf("failed to read script: %w", err)
	}
	return load(filepath.Base(path), string(content))
}

// LoadString compiles a Lua tool script from source. The name is used in
// error messages only.
func LoadString(name, source string) (tools.Function, error) {
	return load(name, source)
}

// LoadDir loads every .lua file in dir and registers the resulting
// functions. Scripts that fail to load are skipped with an error log so one
// broken script does not take down the rest.
func LoadDir(dir string, registry *tools.Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read script directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fn, err := LoadFile(path)
		if err != nil {
			log.Error("Skipping broken tool script", "path", path, "error", err)
			continue
		}
		if err := registry.Register(fn); err != nil {
			log.Error("Failed to register tool script", "path", path, "error", err)
			continue
		}
		log.Debug("Registered Lua tool", "name", fn.Name, "path", path)
	}
	return nil
}

func load(name, source string) (tools.Function, error) {
	L := lua.NewState()
	setupSandbox(L)

	if err := L.DoString(source); err != nil {
		L.Close()
		return tools.Function{}, fmt.Errorf("script %s failed to run: %w", name, err)
	}

	toolValue := L.GetGlobal("tool")
	toolTable, ok := toolValue.(*lua.LTable)
	if !ok {
		L.Close()
		return tools.Function{}, fmt.Errorf("script %s does not define a 'tool' table", name)
	}

	fnName := lua.LVAsString(toolTable.RawGetString("name"))
	if fnName == "" {
		L.Close()
		return tools.Function{}, fmt.Errorf("script %s: tool.name is required", name)
	}

	execute, ok := toolTable.RawGetString("execute").(*lua.LFunction)
	if !ok {
		L.Close()
		return tools.Function{}, fmt.Errorf("script %s: tool.execute must be a function", name)
	}

	category := tools.CategoryQuery
	if raw := lua.LVAsString(toolTable.RawGetString("category")); raw != "" {
		parsed, known := tools.ParseCategory(raw)
		if !known {
			L.Close()
			return tools.Function{}, fmt.Errorf("script %s: unknown category %q", name, raw)
		}
		category = parsed
	}

	var parameters any
	if paramsTable, ok := toolTable.RawGetString("parameters").(*lua.LTable); ok {
		parameters = luaToGo(paramsTable)
	} else {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	// One Lua state per tool; calls are serialized on it.
	var mu sync.Mutex

	handler := func(args tools.Args) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		argsTable := L.NewTable()
		for key, value := range args {
			argsTable.RawSetString(key, goToLua(L, value))
		}

		if err := L.CallByParam(lua.P{Fn: execute, NRet: 1, Protect: true}, argsTable); err != nil {
			return "", err
		}
		ret := L.Get(-1)
		L.Pop(1)

		if ret == lua.LNil {
			return "", nil
		}
		return lua.LVAsString(ret), nil
	}

	return tools.Function{
		Name:        fnName,
		Description: lua.LVAsString(toolTable.RawGetString("description")),
		Parameters:  parameters,
		Category:    category,
		Target:      lua.LVAsString(toolTable.RawGetString("target")),
		Handler:     handler,
	}, nil
}

// luaToGo converts a Lua value into JSON-friendly Go values. Tables with
// sequential integer keys become slices, everything else becomes maps.
func luaToGo(value lua.LValue) any {
	switch v := value.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if n := v.Len(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, luaToGo(v.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		v.ForEach(func(key, val lua.LValue) {
			out[lua.LVAsString(key)] = luaToGo(val)
		})
		return out
	default:
		return nil
	}
}

// goToLua converts a decoded argument value into a Lua value.
func goToLua(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case string:
		return lua.LString(v)
	case float64:
		return lua.LNumber(v)
	case bool:
		return lua.LBool(v)
	case nil:
		return lua.LNil
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}
