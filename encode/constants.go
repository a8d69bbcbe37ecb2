package encode

// RV32 base opcode field values (bits [6:0]).
const (
	opLoad    = 0b0000011
	opMiscMem = 0b0001111
	opOpImm   = 0b0010011
	opAuipc   = 0b0010111
	opStore   = 0b0100011
	opAmo     = 0b0101111
	opOp      = 0b0110011
	opLui     = 0b0110111
	opBranch  = 0b1100011
	opJalr    = 0b1100111
	opJal     = 0b1101111
	opSystem  = 0b1110011
)

// funct3 values shared by several formats.
const (
	f3Add  = 0b000
	f3Sll  = 0b001
	f3Slt  = 0b010
	f3Sltu = 0b011
	f3Xor  = 0b100
	f3Srl  = 0b101
	f3Or   = 0b110
	f3And  = 0b111

	f3Beq  = 0b000
	f3Bne  = 0b001
	f3Blt  = 0b100
	f3Bge  = 0b101
	f3Bltu = 0b110
	f3Bgeu = 0b111

	f3Lb  = 0b000
	f3Lh  = 0b001
	f3Lw  = 0b010
	f3Lbu = 0b100
	f3Lhu = 0b101

	f3Sb = 0b000
	f3Sh = 0b001
	f3Sw = 0b010

	f3Mul    = 0b000
	f3Mulh   = 0b001
	f3Mulhsu = 0b010
	f3Mulhu  = 0b011
	f3Div    = 0b100
	f3Divu   = 0b101
	f3Rem    = 0b110
	f3Remu   = 0b111

	f3Amo = 0b010
)

const (
	f7Base = 0b0000000
	f7Alt  = 0b0100000 // SUB, SRA
	f7M    = 0b0000001 // RV32M extension
)

// AMO funct5 values (bits [31:27] of the funct7 field).
const (
	amoLR      = 0b00010
	amoSC      = 0b00011
	amoSwap    = 0b00001
	amoAdd     = 0b00000
	amoXor     = 0b00100
	amoAnd     = 0b01100
	amoOr      = 0b01000
	amoMin     = 0b10000
	amoMax     = 0b10100
	amoMinu    = 0b11000
	amoMaxu    = 0b11100
)

const (
	immI12Min = -2048
	immI12Max = 2047
	immB13Min = -4096
	immB13Max = 4094
	immJ21Min = -1048576
	immJ21Max = 1048574
	immU20Max = 0xFFFFF
)
