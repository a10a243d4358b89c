package validator

import "testing"

func TestValidateMongo_BlocksDangerousOperators(t *testing.T) {
	cases := []string{
		`db.users.find({$where: "this.password == 'x'"})`,
		`db.runCommand({shutdown: 1})`,
		`db.users.dropUser("admin")`,
		`db.getSiblingDB("admin").auth("root", "x")`,
		`db.runCommand({mapReduce: "users", map: function() {}, reduce: function() {}})`,
	}
	for _, q := range cases {
		if err := ValidateMongo(q); err == nil {
			t.Fatalf("expected %q to be blocked", q)
		}
	}
}

func TestValidateMongo_AllowsOrdinaryOperations(t *testing.T) {
	cases := []string{
		`db.users.find({active: true})`,
		`db.users.insertOne({name: "Ada"})`,
		`db.users.updateOne({_id: 1}, {$set: {name: "Ada"}})`,
		`db.users.aggregate([{$match: {active: true}}])`,
	}
	for _, q := range cases {
		if err := ValidateMongo(q); err != nil {
			t.Fatalf("expected %q to pass, got %v", q, err)
		}
	}
}
