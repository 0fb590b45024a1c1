package chainclient

// tokenABI describes the view methods and events of the allowlisted
// fungible token this system indexes (spec §6.1, §4.3).
const tokenABI = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"splitMultiplier","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isApproved","stateMutability":"view","inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},

	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"WalletApproved","anonymous":false,"inputs":[
		{"name":"wallet","type":"address","indexed":true}
	]},
	{"type":"event","name":"WalletRevoked","anonymous":false,"inputs":[
		{"name":"wallet","type":"address","indexed":true}
	]},
	{"type":"event","name":"StockSplit","anonymous":false,"inputs":[
		{"name":"multiplier","type":"uint256","indexed":false},
		{"name":"newCumulativeMultiplier","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"SymbolChanged","anonymous":false,"inputs":[
		{"name":"oldSymbol","type":"string","indexed":false},
		{"name":"newSymbol","type":"string","indexed":false}
	]},
	{"type":"event","name":"NameChanged","anonymous":false,"inputs":[
		{"name":"oldName","type":"string","indexed":false},
		{"name":"newName","type":"string","indexed":false}
	]},
	{"type":"event","name":"TransferBlocked","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`
