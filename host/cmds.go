// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "github.com/beevik/cmd"

// A selection is a command looked up from a line of input, together with
// the arguments that followed it.
type selection struct {
	cmd  *cmd.Command
	args []string
}

type handler func(*Host, selection) error

var cmds *cmd.Tree

func init() {
	// Create a command tree, where the data stored with each command is a
	// host callback capable of handling the command.
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "mini6502"})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "help",
		Brief:       "Display help for a command",
		Description: "Display a list of commands, or help for a single command.",
		Usage:       "help [<command>]",
		Data:        handler((*Host).cmdHelp),
	})

	// Breakpoint commands
	bp := root.AddSubtree(cmd.TreeDescriptor{Name: "breakpoint", Brief: "Breakpoint commands"})
	bp.AddCommand(cmd.CommandDescriptor{
		Name:        "list",
		Brief:       "List breakpoints",
		Description: "List all current breakpoints.",
		Usage:       "breakpoint list",
		Data:        handler((*Host).cmdBreakpointList),
	})
	bp.AddCommand(cmd.CommandDescriptor{
		Name:  "add",
		Brief: "Add a breakpoint",
		Description: "Add a breakpoint at the specified address." +
			" The breakpoint starts enabled.",
		Usage: "breakpoint add <address>",
		Data:  handler((*Host).cmdBreakpointAdd),
	})
	bp.AddCommand(cmd.CommandDescriptor{
		Name:        "remove",
		Brief:       "Remove a breakpoint",
		Description: "Remove a breakpoint at the specified address.",
		Usage:       "breakpoint remove <address>",
		Data:        handler((*Host).cmdBreakpointRemove),
	})
	bp.AddCommand(cmd.CommandDescriptor{
		Name:        "enable",
		Brief:       "Enable a breakpoint",
		Description: "Enable a previously added breakpoint.",
		Usage:       "breakpoint enable <address>",
		Data:        handler((*Host).cmdBreakpointEnable),
	})
	bp.AddCommand(cmd.CommandDescriptor{
		Name:  "disable",
		Brief: "Disable a breakpoint",
		Description: "Disable a previously added breakpoint. This" +
			" prevents the breakpoint from being hit when running the" +
			" CPU.",
		Usage: "breakpoint disable <address>",
		Data:  handler((*Host).cmdBreakpointDisable),
	})

	// Data breakpoint commands
	db := root.AddSubtree(cmd.TreeDescriptor{Name: "databreakpoint", Brief: "Data breakpoint commands"})
	db.AddCommand(cmd.CommandDescriptor{
		Name:        "list",
		Brief:       "List data breakpoints",
		Description: "List all current data breakpoints.",
		Usage:       "databreakpoint list",
		Data:        handler((*Host).cmdDataBreakpointList),
	})
	db.AddCommand(cmd.CommandDescriptor{
		Name:  "add",
		Brief: "Add a data breakpoint",
		Description: "Add a new data breakpoint at the specified" +
			" memory address. When the CPU stores data at this address, the" +
			" breakpoint will stop the CPU. Optionally, a byte value may" +
			" be specified, and the CPU will stop only when this value is" +
			" stored. The data breakpoint starts enabled.",
		Usage: "databreakpoint add <address> [<value>]",
		Data:  handler((*Host).cmdDataBreakpointAdd),
	})
	db.AddCommand(cmd.CommandDescriptor{
		Name:  "remove",
		Brief: "Remove a data breakpoint",
		Description: "Remove a previously added data breakpoint at" +
			" the specified memory address.",
		Usage: "databreakpoint remove <address>",
		Data:  handler((*Host).cmdDataBreakpointRemove),
	})
	db.AddCommand(cmd.CommandDescriptor{
		Name:        "enable",
		Brief:       "Enable a data breakpoint",
		Description: "Enable a previously added data breakpoint.",
		Usage:       "databreakpoint enable <address>",
		Data:        handler((*Host).cmdDataBreakpointEnable),
	})
	db.AddCommand(cmd.CommandDescriptor{
		Name:        "disable",
		Brief:       "Disable a data breakpoint",
		Description: "Disable a previously added data breakpoint.",
		Usage:       "databreakpoint disable <address>",
		Data:        handler((*Host).cmdDataBreakpointDisable),
	})

	root.AddCommand(cmd.CommandDescriptor{
		Name:  "digest",
		Brief: "Display a digest of the machine state",
		Description: "Display the registers, flags, run state, fault," +
			" step count and a 64-bit hash of memory. Two machines with" +
			" equal digests hold equal state.",
		Usage: "digest",
		Data:  handler((*Host).cmdDigest),
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "disassemble",
		Brief: "Disassemble code",
		Description: "Disassemble machine code starting at the requested" +
			" address. The number of instruction lines to disassemble may be" +
			" specified as an option. If no address is specified, the" +
			" disassembly continues from where the last disassembly left off.",
		Usage: "disassemble [<address>] [<lines>]",
		Data:  handler((*Host).cmdDisassemble),
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "load",
		Brief: "Load a binary image",
		Description: "Load the contents of a raw binary file into" +
			" memory. If no address is given, the image loads at the" +
			" LoadAddr setting. The program counter is set to the load" +
			" address.",
		Usage: "load <filename> [<address>]",
		Data:  handler((*Host).cmdLoad),
	})

	// Memory commands
	me := root.AddSubtree(cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"})
	me.AddCommand(cmd.CommandDescriptor{
		Name:  "dump",
		Brief: "Dump memory at address",
		Description: "Dump the contents of memory starting from the" +
			" specified address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		Usage: "memory dump [<address>] [<bytes>]",
		Data:  handler((*Host).cmdMemoryDump),
	})
	me.AddCommand(cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set memory at address",
		Description: "Set the contents of memory starting from the specified" +
			" address. The values to assign should be a series of" +
			" space-separated byte values.",
		Usage: "memory set <address> <byte> [<byte> ...]",
		Data:  handler((*Host).cmdMemorySet),
	})

	root.AddCommand(cmd.CommandDescriptor{
		Name:        "quit",
		Brief:       "Quit the program",
		Description: "Quit the program.",
		Usage:       "quit",
		Data:        handler((*Host).cmdQuit),
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "register",
		Brief: "View or change register values",
		Description: "When used without arguments, this command displays" +
			" the current contents of the CPU registers. When used with" +
			" the PC register name and a value, the program counter is" +
			" changed.",
		Usage: "register [pc <value>]",
		Data:  handler((*Host).cmdRegister),
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "reset",
		Brief: "Reset the CPU",
		Description: "Reset the CPU. Registers and flags are cleared, the" +
			" program counter is loaded from the reset vector, and any" +
			" fault is cleared. Memory is left unchanged.",
		Usage: "reset",
		Data:  handler((*Host).cmdReset),
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "run",
		Brief: "Run the CPU",
		Description: "Run the CPU until it halts, faults, hits a" +
			" breakpoint, or executes MaxSteps instructions. Press ctrl-C" +
			" to break. An optional starting address may be given.",
		Usage: "run [<address>]",
		Data:  handler((*Host).cmdRun),
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set a configuration variable",
		Description: "Set the value of a configuration variable. To see the" +
			" current values of all configuration variables, type set" +
			" without any arguments.",
		Usage: "set [<var> <value>]",
		Data:  handler((*Host).cmdSet),
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "step",
		Brief: "Step the CPU",
		Description: "Step the CPU by a single instruction. The number of" +
			" steps may be specified as an option.",
		Usage: "step [<count>]",
		Data:  handler((*Host).cmdStep),
	})

	// Add command shortcuts.
	shortcuts := [][2]string{
		{"ba", "breakpoint add"},
		{"br", "breakpoint remove"},
		{"bl", "breakpoint list"},
		{"be", "breakpoint enable"},
		{"bd", "breakpoint disable"},
		{"d", "disassemble"},
		{"dbl", "databreakpoint list"},
		{"dba", "databreakpoint add"},
		{"dbr", "databreakpoint remove"},
		{"dbe", "databreakpoint enable"},
		{"dbd", "databreakpoint disable"},
		{"l", "load"},
		{"m", "memory dump"},
		{"ms", "memory set"},
		{"r", "register"},
		{"s", "step"},
		{"?", "help"},
		{".", "register"},
	}
	for _, s := range shortcuts {
		if err := root.AddShortcut(s[0], s[1]); err != nil {
			panic("shortcut " + s[0] + ": " + err.Error())
		}
	}

	cmds = root
}
